package ai

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/mavelar/chainchess/internal/rules"
)

// Level is an engine strength tier.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelHard         Level = "hard"
	LevelMaster       Level = "master"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const ErrUnknownLevel = staticErr("unknown engine level")

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner, nil
	case LevelIntermediate:
		return LevelIntermediate, nil
	case LevelHard:
		return LevelHard, nil
	case LevelMaster:
		return LevelMaster, nil
	default:
		return "", ErrUnknownLevel
	}
}

const (
	mateScore      = 100_000
	promotionBonus = 800
	checkBonus     = 50
)

// Engine picks a move for the bot-controlled side. Search never fails: when
// no candidate scores it falls back to an arbitrary legal move.
type Engine struct {
	randMu sync.Mutex
	rand   *rand.Rand
}

func NewEngine() *Engine {
	return &Engine{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// SetRandomSeed pins the tie-breaking jitter, for tests.
func (e *Engine) SetRandomSeed(seed int64) {
	e.randMu.Lock()
	e.rand = rand.New(rand.NewSource(seed))
	e.randMu.Unlock()
}

func (e *Engine) random() *rand.Rand {
	e.randMu.Lock()
	seed := e.rand.Int63()
	e.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

// ChooseMove returns the engine's move for the side to play in pos. The
// second return is false only when the position has no legal moves.
func (e *Engine) ChooseMove(pos *rules.Position, level Level) (rules.Move, bool) {
	moves := pos.LegalMoves()
	if len(moves) == 0 {
		return rules.Move{}, false
	}
	r := e.random()
	side := pos.Turn()
	switch level {
	case LevelIntermediate:
		return pickBest(moves, r, func(mv rules.Move) float64 {
			return heuristicScore(pos, side, mv, r)
		}), true
	case LevelHard:
		return pickBest(moves, r, func(mv rules.Move) float64 {
			return float64(evaluateAfter(pos, side, mv))
		}), true
	case LevelMaster:
		return alphaBetaRoot(pos, side, moves, r), true
	default: // beginner: uniform-random legal move
		return moves[r.Intn(len(moves))], true
	}
}

// heuristicScore values a move without search: captured-piece weight,
// promotion and check bonuses, a large bonus for a mating move, plus a
// little jitter so equivalent moves don't always resolve identically.
func heuristicScore(pos *rules.Position, side rules.Color, mv rules.Move, r *rand.Rand) float64 {
	score := float64(mv.CaptureValue)
	if mv.Promotes {
		score += promotionBonus
	}
	if mv.Check {
		score += checkBonus
	}
	if delivers := applied(pos, mv); delivers != nil {
		if res := delivers.TerminalResult(); res != nil && res.Winner == side {
			score += mateScore
		}
	}
	return score + r.Float64()*10
}

// evaluateAfter is the one-ply lookahead: apply the move and statically
// evaluate the resulting position from side's perspective.
func evaluateAfter(pos *rules.Position, side rules.Color, mv rules.Move) int {
	child := applied(pos, mv)
	if child == nil {
		return -mateScore
	}
	return evaluate(child, side)
}

// alphaBetaRoot is the two-ply minimax: maximize over our moves, minimize
// over the opponent's replies, pruning replies that cannot beat the best
// root move found so far.
func alphaBetaRoot(pos *rules.Position, side rules.Color, moves []rules.Move, r *rand.Rand) rules.Move {
	best := moves[r.Intn(len(moves))]
	alpha := -2 * mateScore
	for _, mv := range moves {
		child := applied(pos, mv)
		if child == nil {
			continue
		}
		var score int
		if res := child.TerminalResult(); res != nil {
			score = resultScore(res, side)
		} else {
			score = minReply(child, side, alpha)
		}
		if score > alpha {
			alpha = score
			best = mv
		}
	}
	return best
}

func minReply(child *rules.Position, side rules.Color, alpha int) int {
	best := mateScore
	for _, reply := range child.LegalMoves() {
		grand := applied(child, reply)
		if grand == nil {
			continue
		}
		if score := evaluate(grand, side); score < best {
			best = score
		}
		if best <= alpha {
			break
		}
	}
	return best
}

// evaluate statically scores a position for side: terminal positions map to
// ±mateScore or 0, everything else to the material sum.
func evaluate(pos *rules.Position, side rules.Color) int {
	if res := pos.TerminalResult(); res != nil {
		return resultScore(res, side)
	}
	return pos.Material(side)
}

func resultScore(res *rules.Result, side rules.Color) int {
	switch res.Winner {
	case side:
		return mateScore
	case side.Opponent():
		return -mateScore
	default:
		return 0
	}
}

func applied(pos *rules.Position, mv rules.Move) *rules.Position {
	child := pos.Clone()
	if err := child.ApplyMove(mv.From, mv.To, mv.Promo); err != nil {
		return nil
	}
	return child
}

func pickBest(moves []rules.Move, r *rand.Rand, score func(rules.Move) float64) rules.Move {
	best := moves[r.Intn(len(moves))]
	bestScore := -float64(2 * mateScore)
	for _, mv := range moves {
		if s := score(mv); s > bestScore {
			bestScore = s
			best = mv
		}
	}
	return best
}
