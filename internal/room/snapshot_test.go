package room

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mavelar/chainchess/internal/ai"
	"github.com/mavelar/chainchess/internal/rules"
)

func TestSnapshotRoundTrip(t *testing.T) {
	r := activeRoom(t)
	for _, uci := range []string{"e2e4", "c7c5", "g1f3"} {
		if err := r.Position.ApplyMove(uci[:2], uci[2:4], ""); err != nil {
			t.Fatalf("ApplyMove %s: %v", uci, err)
		}
	}
	r.DrawOfferBy = rules.Black
	r.RematchOffers[rules.White] = true
	if err := r.EnterChat(addrWhite, "alice", "a.png"); err != nil {
		t.Fatalf("EnterChat: %v", err)
	}
	r.AppendMessage(ChatMessage{ID: "m1", Address: addrWhite, Username: "alice", Text: "gg", SentAt: time.Now().UTC()})
	r.AI = AIState{Enabled: false}
	r.AttachConn(&fakeConn{}, addrWhite)
	r.Forfeit = &Forfeit{Color: rules.Black, DeadlineAt: time.Now()}

	snap := r.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, err := FromSnapshot(&decoded)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	if restored.ID != r.ID || restored.White != r.White || restored.Black != r.Black {
		t.Fatalf("identity mismatch after restore")
	}
	if restored.Position.FEN() != r.Position.FEN() {
		t.Fatalf("FEN mismatch:\n%s\n%s", restored.Position.FEN(), r.Position.FEN())
	}
	if restored.Position.MoveCount() != 3 {
		t.Fatalf("move history lost: %d", restored.Position.MoveCount())
	}
	if restored.DrawOfferBy != rules.Black || !restored.RematchOffers[rules.White] {
		t.Fatalf("negotiation state lost")
	}
	if restored.Roster[addrWhite].Username != "alice" || len(restored.Messages) != 1 {
		t.Fatalf("chat state lost")
	}

	// process-local state must not survive
	if restored.ConnCount() != 0 {
		t.Fatalf("connections must not be restored")
	}
	if restored.Forfeit != nil {
		t.Fatalf("forfeit countdown must not be restored")
	}
}

func TestSnapshotVersionGate(t *testing.T) {
	snap := activeRoom(t).Snapshot()
	snap.Version = SchemaVersion + 1
	if _, err := FromSnapshot(snap); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestSnapshotFENFallback(t *testing.T) {
	r := activeRoom(t)
	if err := r.Position.ApplyMove("e2", "e4", ""); err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	snap := r.Snapshot()
	snap.MovesUCI = []string{"e2e4", "e2e4"} // corrupt history
	restored, err := FromSnapshot(snap)
	if err != nil {
		t.Fatalf("expected FEN fallback, got %v", err)
	}
	if restored.Position.FEN() != r.Position.FEN() {
		t.Fatalf("fallback restored the wrong position")
	}
}

func TestSnapshotThinkingIsTransient(t *testing.T) {
	r := activeRoom(t)
	r.AI = AIState{Enabled: true, Level: ai.LevelHard, BotAddress: BotAddress, Thinking: true}
	restored, err := FromSnapshot(r.Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	if !restored.AI.Enabled || restored.AI.Level != ai.LevelHard {
		t.Fatalf("ai config lost")
	}
	if restored.AI.Thinking {
		t.Fatalf("thinking flag must reset on restore")
	}
}
