package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Reason tags how a game ended. The first group is produced by the rules
// engine itself; the second group is forced by the session coordinator and
// always takes priority over the engine's own classification.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonThreefold            Reason = "threefold_repetition"
	ReasonDraw                 Reason = "draw"

	ReasonResignation   Reason = "resignation"
	ReasonForfeit       Reason = "forfeit"
	ReasonTimeout       Reason = "timeout"
	ReasonDrawAgreement Reason = "draw_agreement"
)

// Result is a terminal outcome. Winner is empty for draws.
type Result struct {
	Winner Color  `json:"winner,omitempty"`
	Reason Reason `json:"reason"`
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const ErrIllegalMove = staticErr("illegal move")

// Standard material weights in centipawns.
var pieceValue = map[nchess.PieceType]int{
	nchess.Pawn:   100,
	nchess.Knight: 320,
	nchess.Bishop: 330,
	nchess.Rook:   500,
	nchess.Queen:  900,
	nchess.King:   0,
}

// Move is one legal move with the metadata the AI search scores on.
type Move struct {
	From         string
	To           string
	Promo        string
	Capture      bool
	CaptureValue int
	Check        bool
	Promotes     bool
}

func (m Move) UCI() string { return m.From + m.To + m.Promo }

// Position wraps an engine-owned board state. It is not safe for concurrent
// use; the owning room's lock serializes access.
type Position struct {
	game     *nchess.Game
	movesUCI []string
	movesSAN []string
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	return &Position{game: nchess.NewGame()}
}

// FromFEN builds a position from a FEN string. The resulting position has no
// move history, so repetition claims are not available; prefer Replay when
// the move list survived.
func FromFEN(fen string) (*Position, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Position{game: nchess.NewGame(opt)}, nil
}

// Replay reconstructs a position by applying stored UCI moves from the
// starting position.
func Replay(movesUCI []string) (*Position, error) {
	p := NewPosition()
	for _, mv := range movesUCI {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if len(mv) < 4 {
			return nil, fmt.Errorf("replay %q: %w", mv, ErrIllegalMove)
		}
		if err := p.ApplyMove(mv[:2], mv[2:4], mv[4:]); err != nil {
			return nil, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	return p, nil
}

// ApplyMove applies from→to with an optional promotion hint ("q", "queen",
// ...). Illegal or malformed moves leave the position untouched and return
// ErrIllegalMove.
func (p *Position) ApplyMove(from, to, promotion string) error {
	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + promoLetter(promotion))
	if len(uci) < 4 {
		return ErrIllegalMove
	}
	notationUCI := nchess.UCINotation{}
	pos := p.game.Position()
	mv, err := notationUCI.Decode(pos, uci)
	if err != nil {
		return ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := p.game.Move(mv, nil); err != nil {
		return ErrIllegalMove
	}
	p.movesUCI = append(p.movesUCI, uci)
	p.movesSAN = append(p.movesSAN, san)
	p.claimAutomaticDraws()
	return nil
}

// claimAutomaticDraws promotes claimable draws (threefold, fifty-move) into
// terminal outcomes so IsTerminal matches the match engine's contract.
func (p *Position) claimAutomaticDraws() {
	for _, method := range p.game.EligibleDraws() {
		switch method {
		case nchess.ThreefoldRepetition, nchess.FiftyMoveRule:
			_ = p.game.Draw(method)
			return
		}
	}
}

// Turn returns the color to move.
func (p *Position) Turn() Color {
	if p.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// FEN is the serializable projection of the position.
func (p *Position) FEN() string { return p.game.FEN() }

func (p *Position) MovesUCI() []string { return append([]string(nil), p.movesUCI...) }

func (p *Position) MovesSAN() []string { return append([]string(nil), p.movesSAN...) }

func (p *Position) MoveCount() int { return len(p.movesUCI) }

// IsTerminal reports whether the game is over by the rules alone.
func (p *Position) IsTerminal() bool { return p.game.Outcome() != nchess.NoOutcome }

// TerminalResult classifies a terminal position, or returns nil while the
// game is still in progress.
func (p *Position) TerminalResult() *Result {
	outcome := p.game.Outcome()
	if outcome == nchess.NoOutcome {
		return nil
	}
	res := &Result{}
	switch outcome {
	case nchess.WhiteWon:
		res.Winner = White
	case nchess.BlackWon:
		res.Winner = Black
	}
	switch p.game.Method() {
	case nchess.Checkmate:
		res.Reason = ReasonCheckmate
	case nchess.Stalemate:
		res.Reason = ReasonStalemate
	case nchess.InsufficientMaterial:
		res.Reason = ReasonInsufficientMaterial
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		res.Reason = ReasonThreefold
	default:
		res.Reason = ReasonDraw
	}
	return res
}

// LegalMoves enumerates every legal move with scoring metadata.
func (p *Position) LegalMoves() []Move {
	pos := p.game.Position()
	board := pos.Board()
	valid := p.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for i := range valid {
		mv := &valid[i]
		m := Move{
			From:  mv.S1().String(),
			To:    mv.S2().String(),
			Check: mv.HasTag(nchess.Check),
		}
		if pt := mv.Promo(); pt != nchess.NoPieceType {
			m.Promo = pieceLetter(pt)
			m.Promotes = true
		}
		switch {
		case mv.HasTag(nchess.EnPassant):
			m.Capture = true
			m.CaptureValue = pieceValue[nchess.Pawn]
		case mv.HasTag(nchess.Capture):
			m.Capture = true
			if piece := board.Piece(mv.S2()); piece != nchess.NoPiece {
				m.CaptureValue = pieceValue[piece.Type()]
			}
		}
		out = append(out, m)
	}
	return out
}

// Clone deep-copies the position for speculative search.
func (p *Position) Clone() *Position {
	return &Position{
		game:     p.game.Clone(),
		movesUCI: append([]string(nil), p.movesUCI...),
		movesSAN: append([]string(nil), p.movesSAN...),
	}
}

// Material returns the material sum from side's perspective: own pieces
// count positive, the opponent's negative.
func (p *Position) Material(side Color) int {
	own := nchess.White
	if side == Black {
		own = nchess.Black
	}
	total := 0
	for _, piece := range p.game.Position().Board().SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		if piece.Color() == own {
			total += pieceValue[piece.Type()]
		} else {
			total -= pieceValue[piece.Type()]
		}
	}
	return total
}

func promoLetter(hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "":
		return ""
	case "q", "queen":
		return "q"
	case "r", "rook":
		return "r"
	case "b", "bishop":
		return "b"
	case "n", "knight":
		return "n"
	default:
		return strings.ToLower(strings.TrimSpace(hint))
	}
}

func pieceLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}
