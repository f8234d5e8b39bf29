package rules

import (
	"errors"
	"testing"
)

func mustApply(t *testing.T, p *Position, uci string) {
	t.Helper()
	if err := p.ApplyMove(uci[:2], uci[2:4], uci[4:]); err != nil {
		t.Fatalf("ApplyMove %s: %v", uci, err)
	}
}

func TestApplyMoveLegalAndIllegal(t *testing.T) {
	p := NewPosition()
	if p.Turn() != White {
		t.Fatalf("expected white to move, got %s", p.Turn())
	}
	mustApply(t, p, "e2e4")
	if p.Turn() != Black {
		t.Fatalf("expected black to move after e4, got %s", p.Turn())
	}
	if p.MoveCount() != 1 {
		t.Fatalf("expected 1 move, got %d", p.MoveCount())
	}

	if err := p.ApplyMove("e4", "e6", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if err := p.ApplyMove("zz", "99", ""); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for garbage, got %v", err)
	}
	// rejected moves leave the position untouched
	if p.MoveCount() != 1 || p.Turn() != Black {
		t.Fatalf("position mutated by rejected move")
	}
}

func TestFoolsMateIsCheckmate(t *testing.T) {
	p := NewPosition()
	for _, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		mustApply(t, p, uci)
	}
	if !p.IsTerminal() {
		t.Fatalf("expected terminal position")
	}
	res := p.TerminalResult()
	if res == nil {
		t.Fatalf("expected result")
	}
	if res.Winner != Black || res.Reason != ReasonCheckmate {
		t.Fatalf("expected black wins by checkmate, got %+v", res)
	}
	if san := p.MovesSAN(); san[len(san)-1] != "Qh4#" {
		t.Fatalf("expected Qh4# as final SAN, got %q", san[len(san)-1])
	}
}

func TestLegalMoveCaptureMetadata(t *testing.T) {
	p := NewPosition()
	mustApply(t, p, "e2e4")
	mustApply(t, p, "d7d5")

	var capture *Move
	for _, mv := range p.LegalMoves() {
		if mv.From == "e4" && mv.To == "d5" {
			m := mv
			capture = &m
		}
	}
	if capture == nil {
		t.Fatalf("exd5 not among legal moves")
	}
	if !capture.Capture || capture.CaptureValue != 100 {
		t.Fatalf("expected pawn capture worth 100, got %+v", capture)
	}
}

func TestReplayAndFENRoundTrip(t *testing.T) {
	p := NewPosition()
	moves := []string{"e2e4", "c7c5", "g1f3", "d7d6"}
	for _, uci := range moves {
		mustApply(t, p, uci)
	}

	replayed, err := Replay(p.MovesUCI())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.FEN() != p.FEN() {
		t.Fatalf("replay FEN mismatch:\n%s\n%s", replayed.FEN(), p.FEN())
	}

	fromFEN, err := FromFEN(p.FEN())
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	if fromFEN.Turn() != p.Turn() {
		t.Fatalf("turn mismatch after FEN restore")
	}
	if fromFEN.MoveCount() != 0 {
		t.Fatalf("FEN restore should carry no history")
	}

	if _, err := Replay([]string{"e2e4", "e2e4"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove on bad replay, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewPosition()
	mustApply(t, p, "e2e4")
	clone := p.Clone()
	mustApply(t, clone, "e7e5")
	if p.MoveCount() != 1 || clone.MoveCount() != 2 {
		t.Fatalf("clone mutated the original: %d vs %d", p.MoveCount(), clone.MoveCount())
	}
}

func TestMaterialAfterCapture(t *testing.T) {
	p := NewPosition()
	if p.Material(White) != 0 {
		t.Fatalf("starting material should balance, got %d", p.Material(White))
	}
	mustApply(t, p, "e2e4")
	mustApply(t, p, "d7d5")
	mustApply(t, p, "e4d5")
	if got := p.Material(White); got != 100 {
		t.Fatalf("expected +100 for white after winning a pawn, got %d", got)
	}
	if got := p.Material(Black); got != -100 {
		t.Fatalf("expected -100 for black, got %d", got)
	}
}
