package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is loaded from the environment at startup. Redis and Postgres
// are optional: without REDIS_URL rooms live in a volatile map, without
// DATABASE_URL no result archive is written.
type AppConfig struct {
	ListenAddr string

	RedisURL       string
	DatabaseURL    string
	ProfileBaseURL string

	AllowedOrigins []string
	MsgOverrideDir string

	ClockInitial   time.Duration
	ClockIncrement time.Duration
	ForfeitWindow  time.Duration
	AIMoveDelay    time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:     ":8080",
		ClockInitial:   5 * time.Minute,
		ClockIncrement: 5 * time.Second,
		ForfeitWindow:  60 * time.Second,
		AIMoveDelay:    400 * time.Millisecond,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ProfileBaseURL = strings.TrimSpace(os.Getenv("PROFILE_BASE_URL"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if d, ok := envMs("CLOCK_INITIAL_MS"); ok {
		cfg.ClockInitial = d
	}
	if d, ok := envMs("CLOCK_INCREMENT_MS"); ok {
		cfg.ClockIncrement = d
	}
	if v := strings.TrimSpace(os.Getenv("FORFEIT_WINDOW_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ForfeitWindow = time.Duration(n) * time.Second
		}
	}
	if d, ok := envMs("AI_MOVE_DELAY_MS"); ok {
		cfg.AIMoveDelay = d
	}

	return cfg, nil
}

func envMs(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
