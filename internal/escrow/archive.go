package escrow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mavelar/chainchess/internal/obslog"
	"github.com/mavelar/chainchess/internal/rules"
)

// Archive is the audit sink for escrow commands and the durable record of
// finished games. The core performs no on-chain logic; escrow entries are
// opaque. All methods are nil-safe so the coordinator can run without a
// database.
type Archive struct {
	db *sql.DB
}

func NewArchive(databaseURL string) (*Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Event is one opaque escrow action reported by a client (lock, settle,
// refund, ...). It has no effect on match state.
type Event struct {
	RoomID  string
	GameNo  int
	Address string
	Action  string
	Detail  json.RawMessage
}

// LogEvent appends the escrow action to the audit table.
func (a *Archive) LogEvent(ctx context.Context, ev Event) error {
	obslog.L().Info("escrow_event",
		zap.String("room_id", ev.RoomID),
		zap.Int("game_no", ev.GameNo),
		zap.String("address", ev.Address),
		zap.String("action", ev.Action),
	)
	if a == nil || a.db == nil {
		return nil
	}
	detail := ev.Detail
	if len(detail) == 0 {
		detail = json.RawMessage("{}")
	}
	const q = `INSERT INTO escrow_events (room_id, game_no, address, action, detail, created_at)
        VALUES ($1,$2,$3,$4,$5::jsonb,NOW())`
	_, err := a.db.ExecContext(ctx, q, ev.RoomID, ev.GameNo, strings.TrimSpace(ev.Address), strings.TrimSpace(ev.Action), string(detail))
	return err
}

// GameRecord is the final state of one game instance inside a room.
type GameRecord struct {
	RoomID    string
	GameNo    int
	White     string
	Black     string
	Result    rules.Result
	MovesSAN  []string
	StartedAt time.Time
	EndedAt   time.Time
}

// SaveResult upserts the finished game keyed by (room_id, game_no), so a
// retried write after a crash is harmless.
func (a *Archive) SaveResult(ctx context.Context, rec *GameRecord) error {
	if a == nil || a.db == nil || rec == nil {
		return nil
	}
	pgnResult := mapResultToPGN(rec.Result)
	pgn := buildPGN(rec, pgnResult)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO match_results (
        room_id, game_no, white_address, black_address,
        winner, reason, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10,$11)
      ON CONFLICT (room_id, game_no) DO UPDATE SET
        winner=EXCLUDED.winner,
        reason=EXCLUDED.reason,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := a.db.ExecContext(ctx, q,
		rec.RoomID, rec.GameNo,
		rec.White, rec.Black,
		string(rec.Result.Winner), string(rec.Result.Reason),
		string(movesSANRaw), pgn,
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func mapResultToPGN(res rules.Result) string {
	switch res.Winner {
	case rules.White:
		return "1-0"
	case rules.Black:
		return "0-1"
	default:
		return "1/2-1/2"
	}
}

func buildPGN(rec *GameRecord, pgnResult string) string {
	var b strings.Builder
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"ChainChess\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(rec.RoomID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[Round \"%d\"]\n", rec.GameNo))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(rec.White)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(rec.Black)))
	if rec.Result.Reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(string(rec.Result.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
