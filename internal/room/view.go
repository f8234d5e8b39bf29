package room

import (
	"github.com/mavelar/chainchess/internal/rules"
	"github.com/mavelar/chainchess/pkg/wire"
)

// View serializes the room for the game_state push. Caller holds the room
// lock. The clock values reflect the most recent decay; callers that want
// live numbers decay first.
func (r *Room) View() *wire.GameState {
	v := &wire.GameState{
		RoomID: r.ID,
		FEN:    r.Position.FEN(),
		Turn:   string(r.Position.Turn()),
		Status: string(r.Status()),
		GameNo: r.GameNo,
		Players: wire.Players{
			White: r.White,
			Black: r.Black,
		},
		Online: wire.Online{
			White: r.ColorOnline(rules.White),
			Black: r.ColorOnline(rules.Black),
		},
		DrawOfferBy: string(r.DrawOfferBy),
		Clock: wire.Clock{
			WhiteMs:     r.Clock.WhiteMs,
			BlackMs:     r.Clock.BlackMs,
			IncrementMs: r.Clock.IncrementMs,
			Running:     r.Clock.Running,
		},
		AI: wire.AIState{
			Enabled:  r.AI.Enabled,
			Level:    string(r.AI.Level),
			Thinking: r.AI.Thinking,
		},
		MovesSAN:  r.Position.MovesSAN(),
		CreatedAt: r.CreatedAt,
	}
	if res := r.Result(); res != nil {
		v.Result = &wire.Result{Winner: string(res.Winner), Reason: string(res.Reason)}
	}
	for _, color := range []rules.Color{rules.White, rules.Black} {
		if r.RematchOffers[color] {
			v.RematchOffers = append(v.RematchOffers, string(color))
		}
	}
	if len(r.Roster) > 0 {
		v.Chat.Roster = make(map[string]wire.ChatProfile, len(r.Roster))
		for addr, p := range r.Roster {
			v.Chat.Roster[addr] = wire.ChatProfile{Username: p.Username, Avatar: p.Avatar}
		}
	}
	for _, m := range r.Messages {
		v.Chat.Messages = append(v.Chat.Messages, wire.ChatMessage{
			ID:       m.ID,
			Address:  m.Address,
			Username: m.Username,
			Text:     m.Text,
			SentAt:   m.SentAt,
		})
	}
	return v
}
