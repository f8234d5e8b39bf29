package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mavelar/chainchess/internal/ai"
	appcfg "github.com/mavelar/chainchess/internal/config"
	"github.com/mavelar/chainchess/internal/escrow"
	"github.com/mavelar/chainchess/internal/httpapi"
	"github.com/mavelar/chainchess/internal/match"
	"github.com/mavelar/chainchess/internal/msgcat"
	"github.com/mavelar/chainchess/internal/obslog"
	"github.com/mavelar/chainchess/internal/profile"
	"github.com/mavelar/chainchess/internal/store"
	"github.com/mavelar/chainchess/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		obslog.L().Fatal("message catalog init", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.RoomStore
	if cfg.RedisURL != "" {
		st, err = store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			obslog.L().Fatal("redis init", zap.Error(err))
		}
		obslog.L().Info("store_redis")
	} else {
		st = store.NewMemory()
		obslog.L().Warn("store_memory", zap.String("hint", "set REDIS_URL for durable rooms"))
	}

	var archive *escrow.Archive
	if cfg.DatabaseURL != "" {
		archive, err = escrow.NewArchive(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("archive init", zap.Error(err))
		}
		defer archive.Close()
		obslog.L().Info("archive_postgres")
	} else {
		obslog.L().Warn("archive_disabled", zap.String("hint", "set DATABASE_URL to record results"))
	}

	var resolver profile.Resolver
	if cfg.ProfileBaseURL != "" {
		resolver = profile.NewHTTPResolver(cfg.ProfileBaseURL)
	}

	coord := match.New(st, ai.NewEngine(), archive, resolver, match.Config{
		InitialClock:  cfg.ClockInitial,
		Increment:     cfg.ClockIncrement,
		ForfeitWindow: cfg.ForfeitWindow,
		AIMoveDelay:   cfg.AIMoveDelay,
	})
	go coord.Run(ctx)

	sock := ws.NewServer(coord, cat, cfg.AllowedOrigins)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.SetupRoutes(coord, sock),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("http serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	obslog.L().Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}
