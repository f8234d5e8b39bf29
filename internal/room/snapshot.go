package room

import (
	"fmt"
	"time"

	"github.com/mavelar/chainchess/internal/rules"
)

// SchemaVersion is bumped whenever the snapshot shape changes.
const SchemaVersion = 1

// Snapshot is the durable, serializable projection of a Room. Connections
// and the forfeit timer are deliberately absent: they are process-local and
// must be re-derived after a restore. The UCI move list is stored alongside
// the FEN so repetition claims survive a restart; the FEN remains the
// fallback when no history is available.
type Snapshot struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	FEN     string `json:"fen"`

	MovesUCI []string `json:"moves_uci,omitempty"`
	MovesSAN []string `json:"moves_san,omitempty"`

	White  string `json:"white,omitempty"`
	Black  string `json:"black,omitempty"`
	GameNo int    `json:"game_no"`

	ForcedResult  *rules.Result `json:"forced_result,omitempty"`
	DrawOfferBy   rules.Color   `json:"draw_offer_by,omitempty"`
	RematchOffers []rules.Color `json:"rematch_offers,omitempty"`

	Clock    Clock                  `json:"clock"`
	Roster   map[string]ChatProfile `json:"roster,omitempty"`
	Messages []ChatMessage          `json:"messages,omitempty"`
	AI       AIState                `json:"ai"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures the room's persisted subset. Caller holds the room lock.
func (r *Room) Snapshot() *Snapshot {
	s := &Snapshot{
		Version:      SchemaVersion,
		ID:           r.ID,
		FEN:          r.Position.FEN(),
		MovesUCI:     r.Position.MovesUCI(),
		MovesSAN:     r.Position.MovesSAN(),
		White:        r.White,
		Black:        r.Black,
		GameNo:       r.GameNo,
		ForcedResult: r.ForcedResult,
		DrawOfferBy:  r.DrawOfferBy,
		Clock:        r.Clock,
		AI:           r.AI,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    time.Now().UTC(),
	}
	for color := range r.RematchOffers {
		s.RematchOffers = append(s.RematchOffers, color)
	}
	if len(r.Roster) > 0 {
		s.Roster = make(map[string]ChatProfile, len(r.Roster))
		for addr, p := range r.Roster {
			s.Roster[addr] = p
		}
	}
	s.Messages = append(s.Messages, r.Messages...)
	return s
}

// FromSnapshot reconstructs a live Room. The connection set starts empty
// and no forfeit timer is resurrected; the coordinator re-evaluates forfeit
// state from live connections afterwards.
func FromSnapshot(s *Snapshot) (*Room, error) {
	if s == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	if s.Version != SchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	var (
		pos *rules.Position
		err error
	)
	switch {
	case len(s.MovesUCI) > 0:
		pos, err = rules.Replay(s.MovesUCI)
		if err != nil && s.FEN != "" {
			pos, err = rules.FromFEN(s.FEN)
		}
	case s.FEN != "":
		pos, err = rules.FromFEN(s.FEN)
	default:
		pos = rules.NewPosition()
	}
	if err != nil {
		return nil, fmt.Errorf("restore position: %w", err)
	}
	r := &Room{
		ID:            s.ID,
		Position:      pos,
		White:         s.White,
		Black:         s.Black,
		GameNo:        s.GameNo,
		ForcedResult:  s.ForcedResult,
		DrawOfferBy:   s.DrawOfferBy,
		RematchOffers: make(map[rules.Color]bool),
		Clock:         s.Clock,
		Roster:        make(map[string]ChatProfile, len(s.Roster)),
		AI:            s.AI,
		conns:         make(map[Conn]string),
		CreatedAt:     s.CreatedAt,
	}
	if r.GameNo == 0 {
		r.GameNo = 1
	}
	for _, color := range s.RematchOffers {
		r.RematchOffers[color] = true
	}
	for addr, p := range s.Roster {
		r.Roster[addr] = p
	}
	r.Messages = append(r.Messages, s.Messages...)
	// thinking is transient even though the ai block persists
	r.AI.Thinking = false
	return r, nil
}
