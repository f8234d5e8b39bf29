package room

import (
	"strings"
	"sync"
	"time"

	"github.com/mavelar/chainchess/internal/ai"
	"github.com/mavelar/chainchess/internal/rules"
	"github.com/mavelar/chainchess/pkg/wire"
)

// Status represents a match session lifecycle state.
type Status string

const (
	StatusAwaitingOpponent Status = "AWAITING_OPPONENT"
	StatusActive           Status = "ACTIVE"
	StatusFinished         Status = "FINISHED"
)

// BotAddress is the reserved pseudo-address seated at black when the
// embedded engine plays the room.
const BotAddress = "0x0000000000000000000000000000000000000b07"

// Chat bounds.
const (
	MaxChatMessages = 100
	MaxChatTextLen  = 280
	MinUsernameLen  = 2
	MaxUsernameLen  = 24
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrUsernameLength = staticErr("username must be 2-24 characters")
	ErrEmptyMessage   = staticErr("message is empty")
	ErrMessageTooLong = staticErr("message exceeds 280 characters")
)

// Conn is one live attached connection. Send is fire-and-forget: a failing
// or slow connection must never block the room.
type Conn interface {
	Send(msg *wire.ServerMessage)
}

type ChatProfile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	Address  string    `json:"address"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

type AIState struct {
	Enabled    bool     `json:"enabled"`
	Level      ai.Level `json:"level,omitempty"`
	BotAddress string   `json:"bot_address,omitempty"`
	Thinking   bool     `json:"thinking"`
}

// Forfeit tracks a pending disconnect-forfeit countdown. Process-local and
// never persisted; rebuilt from connection state after a restart.
type Forfeit struct {
	Color      rules.Color
	DeadlineAt time.Time
	Timer      *time.Timer
}

// Room is the aggregate tracking one game's full state between two seats.
// Exactly one live instance exists per id per process; every mutation runs
// under the room lock.
type Room struct {
	mu sync.Mutex

	ID       string
	Position *rules.Position
	White    string // wallet address, "" while unseated
	Black    string
	GameNo   int // increments on every rematch reset

	ForcedResult  *rules.Result
	DrawOfferBy   rules.Color // "" when no offer pending
	RematchOffers map[rules.Color]bool

	Clock    Clock
	Roster   map[string]ChatProfile
	Messages []ChatMessage
	AI       AIState

	Forfeit  *Forfeit // transient
	conns    map[Conn]string
	evicted  bool
	Archived bool // result already written to the archive, transient

	CreatedAt time.Time
}

// New creates a room with the creator seated at white and an empty black
// seat. The clock is configured but not running until both seats fill.
func New(id, creator string, clock ClockConfig) *Room {
	return &Room{
		ID:            id,
		Position:      rules.NewPosition(),
		White:         creator,
		GameNo:        1,
		RematchOffers: make(map[rules.Color]bool),
		Clock: Clock{
			WhiteMs:     clock.InitialMs,
			BlackMs:     clock.InitialMs,
			IncrementMs: clock.IncrementMs,
		},
		Roster:    make(map[string]ChatProfile),
		conns:     make(map[Conn]string),
		CreatedAt: time.Now().UTC(),
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// Evicted reports whether this instance was dropped from the live registry;
// a caller that raced an eviction must re-resolve the room.
func (r *Room) Evicted() bool { return r.evicted }
func (r *Room) MarkEvicted()  { r.evicted = true }

// Result resolves the terminal outcome: an explicit forced result always
// wins over the rules engine's own classification.
func (r *Room) Result() *rules.Result {
	if r.ForcedResult != nil {
		return r.ForcedResult
	}
	return r.Position.TerminalResult()
}

func (r *Room) Finished() bool { return r.Result() != nil }

func (r *Room) Status() Status {
	switch {
	case r.Finished():
		return StatusFinished
	case r.Black == "":
		return StatusAwaitingOpponent
	default:
		return StatusActive
	}
}

// Started reports whether the room ever got past setup; abandoned rooms
// (black never seated, zero moves) are deleted rather than persisted.
func (r *Room) Started() bool {
	return r.Black != "" || r.Position.MoveCount() > 0
}

// SeatOf maps an address to its color.
func (r *Room) SeatOf(address string) (rules.Color, bool) {
	switch {
	case address != "" && address == r.White:
		return rules.White, true
	case address != "" && address == r.Black:
		return rules.Black, true
	default:
		return "", false
	}
}

func (r *Room) Seat(color rules.Color) string {
	if color == rules.White {
		return r.White
	}
	return r.Black
}

// Force sets the forced result; write-once until a rematch reset. Stops the
// clock and clears negotiation offers.
func (r *Room) Force(res rules.Result) {
	if r.ForcedResult != nil {
		return
	}
	r.ForcedResult = &res
	r.Clock.Running = false
	r.DrawOfferBy = ""
	r.RematchOffers = make(map[rules.Color]bool)
}

// ResetForRematch loops a finished room back to active: fresh position and
// clocks under the same id and seats.
func (r *Room) ResetForRematch(clock ClockConfig) {
	r.Position = rules.NewPosition()
	r.GameNo++
	r.ForcedResult = nil
	r.DrawOfferBy = ""
	r.RematchOffers = make(map[rules.Color]bool)
	r.AI.Thinking = false
	r.Archived = false
	r.StopForfeit()
	now := time.Now().UTC()
	r.Clock = Clock{
		WhiteMs:     clock.InitialMs,
		BlackMs:     clock.InitialMs,
		IncrementMs: clock.IncrementMs,
		Running:     true,
		LastTickAt:  &now,
	}
}

// StopForfeit cancels any pending forfeit countdown.
func (r *Room) StopForfeit() {
	if r.Forfeit == nil {
		return
	}
	if r.Forfeit.Timer != nil {
		r.Forfeit.Timer.Stop()
	}
	r.Forfeit = nil
}

// EnterChat adds or updates a roster entry after validating the username.
func (r *Room) EnterChat(address, username, avatar string) error {
	username = strings.TrimSpace(username)
	if n := len([]rune(username)); n < MinUsernameLen || n > MaxUsernameLen {
		return ErrUsernameLength
	}
	r.Roster[address] = ChatProfile{Username: username, Avatar: strings.TrimSpace(avatar)}
	return nil
}

// AppendMessage appends to the bounded log, evicting the oldest entries
// once the cap is exceeded.
func (r *Room) AppendMessage(msg ChatMessage) {
	r.Messages = append(r.Messages, msg)
	if n := len(r.Messages); n > MaxChatMessages {
		r.Messages = append([]ChatMessage(nil), r.Messages[n-MaxChatMessages:]...)
	}
}

// ValidateChatText enforces the send_chat bounds without mutating anything.
func ValidateChatText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if len([]rune(text)) > MaxChatTextLen {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// AttachConn binds a live connection to the room under an address.
func (r *Room) AttachConn(c Conn, address string) {
	r.conns[c] = address
}

// DetachConn unbinds and returns the address the connection was bound to.
func (r *Room) DetachConn(c Conn) (string, bool) {
	address, ok := r.conns[c]
	if ok {
		delete(r.conns, c)
	}
	return address, ok
}

func (r *Room) ConnCount() int { return len(r.conns) }

// AddressOnline reports whether any live connection is bound to address.
func (r *Room) AddressOnline(address string) bool {
	if address == "" {
		return false
	}
	for _, a := range r.conns {
		if a == address {
			return true
		}
	}
	return false
}

// ColorOnline reports whether the seat's participant has a live connection.
// The engine-controlled seat counts as always online.
func (r *Room) ColorOnline(color rules.Color) bool {
	address := r.Seat(color)
	if address == "" {
		return false
	}
	if r.AI.Enabled && address == r.AI.BotAddress {
		return true
	}
	return r.AddressOnline(address)
}

// Broadcast fans the message out to every attached connection.
func (r *Room) Broadcast(msg *wire.ServerMessage) {
	for c := range r.conns {
		c.Send(msg)
	}
}
