package match

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mavelar/chainchess/internal/ai"
	"github.com/mavelar/chainchess/internal/escrow"
	"github.com/mavelar/chainchess/internal/obslog"
	"github.com/mavelar/chainchess/internal/profile"
	"github.com/mavelar/chainchess/internal/room"
	"github.com/mavelar/chainchess/internal/rules"
	"github.com/mavelar/chainchess/internal/store"
	"github.com/mavelar/chainchess/pkg/wire"
)

// Config carries the coordinator's tunables.
type Config struct {
	InitialClock  time.Duration
	Increment     time.Duration
	ForfeitWindow time.Duration
	AIMoveDelay   time.Duration
	TickInterval  time.Duration
}

func (c *Config) clock() room.ClockConfig {
	return room.ClockConfig{
		InitialMs:   c.InitialClock.Milliseconds(),
		IncrementMs: c.Increment.Milliseconds(),
	}
}

// Coordinator owns the live room registry and serializes every mutation of a
// room under that room's lock. The registry lock only guards the maps and is
// never held while a room lock is taken.
type Coordinator struct {
	mu     sync.Mutex
	rooms  map[string]*room.Room
	byConn map[room.Conn]string

	store    store.RoomStore
	engine   *ai.Engine
	archive  *escrow.Archive
	resolver profile.Resolver
	cfg      Config

	now func() time.Time
}

func New(st store.RoomStore, engine *ai.Engine, archive *escrow.Archive, resolver profile.Resolver, cfg Config) *Coordinator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Coordinator{
		rooms:    make(map[string]*room.Room),
		byConn:   make(map[room.Conn]string),
		store:    st,
		engine:   engine,
		archive:  archive,
		resolver: resolver,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc pins the coordinator's clock, for tests.
func (c *Coordinator) SetNowFunc(now func() time.Time) { c.now = now }

// CreateRoom allocates a fresh room with the creator seated at white. The
// connection, when one is supplied, is bound to the new room; the HTTP
// surface creates rooms without one.
func (c *Coordinator) CreateRoom(ctx context.Context, conn room.Conn, address string) (*wire.GameState, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}

	id, err := c.allocateID(ctx)
	if err != nil {
		return nil, err
	}
	r := room.New(id, address, c.cfg.clock())

	c.mu.Lock()
	c.rooms[id] = r
	c.mu.Unlock()

	r.Lock()
	defer r.Unlock()
	if conn != nil {
		c.rebind(ctx, conn, r)
		r.AttachConn(conn, address)
	}
	if err := c.store.Create(ctx, r.Snapshot()); err != nil {
		obslog.L().Warn("room_create_persist", zap.String("room_id", id), zap.Error(err))
	}
	obslog.L().Info("room_created", zap.String("room_id", id), zap.String("white", address))
	return r.View(), nil
}

func (c *Coordinator) allocateID(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		id, err := codeGen()
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		_, live := c.rooms[id]
		c.mu.Unlock()
		if live {
			continue
		}
		snap, err := c.store.Get(ctx, id)
		if err != nil {
			// an unreachable store degrades to non-durable operation, it
			// never blocks room creation
			obslog.L().Warn("room_id_check", zap.String("room_id", id), zap.Error(err))
			return id, nil
		}
		if snap == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to allocate room id")
}

// codeGen returns 6 upper alnum characters.
func codeGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}

// JoinRoom seats the address at black, or reattaches an already seated
// player. The clock starts the moment the second seat fills.
func (c *Coordinator) JoinRoom(ctx context.Context, conn room.Conn, roomID, address string) (*wire.GameState, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if _, seated := r.SeatOf(address); seated {
			return c.attachLocked(ctx, conn, r, address), nil
		}
		if r.AI.Enabled {
			return nil, ErrAIRoom
		}
		if r.Black != "" {
			return nil, ErrRoomFull
		}
		r.Black = address
		r.StartClock(c.now())
		c.rebind(ctx, conn, r)
		r.AttachConn(conn, address)
		c.refreshForfeitLocked(r)
		obslog.L().Info("room_joined", zap.String("room_id", r.ID), zap.String("black", address))
		c.commit(ctx, r)
		return r.View(), nil
	})
}

// ResumeRoom reattaches a connection to an existing room. Non-seated
// addresses attach as spectators.
func (c *Coordinator) ResumeRoom(ctx context.Context, conn room.Conn, roomID, address string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		return c.attachLocked(ctx, conn, r, strings.TrimSpace(address)), nil
	})
}

// attachLocked binds the connection and re-evaluates the disconnect
// countdown for both seats. Caller holds the room lock.
func (c *Coordinator) attachLocked(ctx context.Context, conn room.Conn, r *room.Room, address string) *wire.GameState {
	c.rebind(ctx, conn, r)
	r.AttachConn(conn, address)
	c.refreshForfeitLocked(r)
	r.Decay(c.now())
	if r.Finished() {
		c.commit(ctx, r)
	} else {
		r.Broadcast(&wire.ServerMessage{Type: wire.PushGameState, State: r.View()})
	}
	return r.View()
}

// rebind points the connection at r, detaching it from any previous room.
// The detach runs off-thread because callers hold r's lock and taking the
// previous room's lock here could deadlock with a crossing rebind.
func (c *Coordinator) rebind(ctx context.Context, conn room.Conn, r *room.Room) {
	c.mu.Lock()
	prevID, had := c.byConn[conn]
	c.byConn[conn] = r.ID
	prev := c.rooms[prevID]
	c.mu.Unlock()
	if had && prev != nil && prev != r {
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c.detachFrom(dctx, conn, prev)
		}()
	}
}

// Detach drops the connection from whatever room it was bound to. Called by
// the socket layer when a connection closes.
func (c *Coordinator) Detach(ctx context.Context, conn room.Conn) {
	c.mu.Lock()
	id, ok := c.byConn[conn]
	if ok {
		delete(c.byConn, conn)
	}
	r := c.rooms[id]
	c.mu.Unlock()
	if !ok || r == nil {
		return
	}
	c.detachFrom(ctx, conn, r)
}

func (c *Coordinator) detachFrom(ctx context.Context, conn room.Conn, r *room.Room) {
	r.Lock()
	defer r.Unlock()
	if _, had := r.DetachConn(conn); !had {
		return
	}

	// a room nobody ever played in disappears with its last connection
	if r.ConnCount() == 0 && !r.Started() {
		c.dropLocked(ctx, r)
		return
	}

	c.refreshForfeitLocked(r)
	r.Broadcast(&wire.ServerMessage{Type: wire.PushGameState, State: r.View()})

	if r.ConnCount() == 0 && r.Forfeit == nil {
		c.evictLocked(ctx, r)
	}
}

// dropLocked removes the room everywhere; for abandoned rooms only.
func (c *Coordinator) dropLocked(ctx context.Context, r *room.Room) {
	r.MarkEvicted()
	c.mu.Lock()
	delete(c.rooms, r.ID)
	c.mu.Unlock()
	if err := c.store.Delete(ctx, r.ID); err != nil {
		obslog.L().Warn("room_drop_persist", zap.String("room_id", r.ID), zap.Error(err))
	}
	obslog.L().Info("room_dropped", zap.String("room_id", r.ID))
}

// evictLocked persists the room and drops the live instance; the snapshot in
// the store remains resumable.
func (c *Coordinator) evictLocked(ctx context.Context, r *room.Room) {
	if err := c.store.Save(ctx, r.Snapshot()); err != nil {
		obslog.L().Warn("room_evict_persist", zap.String("room_id", r.ID), zap.Error(err))
	}
	r.MarkEvicted()
	c.mu.Lock()
	delete(c.rooms, r.ID)
	c.mu.Unlock()
}

// SetAILevel seats the embedded engine at black. Only the creator may do it,
// only before the first move, and only while the black seat is free.
func (c *Coordinator) SetAILevel(ctx context.Context, roomID, address, levelStr string) (*wire.GameState, error) {
	level, err := ai.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if r.Finished() {
			return nil, ErrGameOver
		}
		if strings.TrimSpace(address) != r.White {
			return nil, ErrNotOwner
		}
		if r.Position.MoveCount() > 0 {
			return nil, ErrAILocked
		}
		if r.Black != "" && r.Black != room.BotAddress {
			return nil, ErrRoomFull
		}
		first := r.Black == ""
		r.Black = room.BotAddress
		r.AI = room.AIState{Enabled: true, Level: level, BotAddress: room.BotAddress}
		if first {
			r.StartClock(c.now())
		}
		c.refreshForfeitLocked(r)
		obslog.L().Info("ai_enabled", zap.String("room_id", r.ID), zap.String("level", string(level)))
		c.commit(ctx, r)
		return r.View(), nil
	})
}

// Move applies one move for the seated address.
func (c *Coordinator) Move(ctx context.Context, roomID, address, from, to, promotion string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if r.Finished() {
			return nil, ErrGameOver
		}
		r.Decay(c.now())
		if r.Finished() {
			c.commit(ctx, r)
			return nil, ErrGameOver
		}
		if r.AI.Enabled && strings.TrimSpace(address) == r.AI.BotAddress {
			return nil, ErrAIRoom
		}
		seat, ok := r.SeatOf(strings.TrimSpace(address))
		if !ok {
			return nil, ErrNotSeated
		}
		if r.Status() != room.StatusActive {
			return nil, ErrAwaitingOpponent
		}
		if seat != r.Position.Turn() {
			return nil, ErrWrongTurn
		}
		if err := c.applyMoveLocked(ctx, r, seat, from, to, promotion); err != nil {
			return nil, err
		}
		return r.View(), nil
	})
}

// applyMoveLocked is the shared path for human and engine moves: apply, void
// the pending draw offer, credit the increment, then settle terminal state or
// schedule the engine's reply. Caller holds the room lock and has verified it
// is seat's turn.
func (c *Coordinator) applyMoveLocked(ctx context.Context, r *room.Room, seat rules.Color, from, to, promotion string) error {
	if err := r.Position.ApplyMove(from, to, promotion); err != nil {
		return err
	}
	r.DrawOfferBy = ""
	r.CreditIncrement(seat, c.now())
	// a move from the flagged side clears its disconnect countdown
	if f := r.Forfeit; f != nil && f.Color == seat {
		r.StopForfeit()
	}

	if res := r.Position.TerminalResult(); res != nil {
		r.Clock.Running = false
		r.StopForfeit()
		obslog.L().Info("game_over",
			zap.String("room_id", r.ID),
			zap.String("winner", string(res.Winner)),
			zap.String("reason", string(res.Reason)))
	} else if r.AI.Enabled && r.Seat(r.Position.Turn()) == r.AI.BotAddress {
		c.scheduleAIMoveLocked(r)
	}
	c.commit(ctx, r)
	return nil
}

// scheduleAIMoveLocked arms the engine's delayed reply. Caller holds the room
// lock; the callback re-acquires it and revalidates everything.
func (c *Coordinator) scheduleAIMoveLocked(r *room.Room) {
	if r.AI.Thinking {
		return
	}
	r.AI.Thinking = true
	gameNo := r.GameNo
	moveNo := r.Position.MoveCount()
	time.AfterFunc(c.cfg.AIMoveDelay, func() {
		c.playAIMove(r, gameNo, moveNo)
	})
}

func (c *Coordinator) playAIMove(r *room.Room, gameNo, moveNo int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.Lock()
	defer r.Unlock()
	r.AI.Thinking = false
	if r.Evicted() || !r.AI.Enabled {
		return
	}
	// stale callback from before a rematch or a racing move
	if r.GameNo != gameNo || r.Position.MoveCount() != moveNo {
		return
	}
	if r.Finished() {
		return
	}
	r.Decay(c.now())
	if r.Finished() {
		c.commit(ctx, r)
		return
	}
	seat := r.Position.Turn()
	if r.Seat(seat) != r.AI.BotAddress {
		return
	}
	mv, ok := c.engine.ChooseMove(r.Position, r.AI.Level)
	if !ok {
		return
	}
	if err := c.applyMoveLocked(ctx, r, seat, mv.From, mv.To, mv.Promo); err != nil {
		obslog.L().Error("ai_move_rejected",
			zap.String("room_id", r.ID),
			zap.String("uci", mv.UCI()),
			zap.Error(err))
	}
}

// Resign forfeits the game for the seated address.
func (c *Coordinator) Resign(ctx context.Context, roomID, address string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if r.Finished() {
			return nil, ErrGameOver
		}
		seat, ok := r.SeatOf(strings.TrimSpace(address))
		if !ok {
			return nil, ErrNotSeated
		}
		if r.Status() != room.StatusActive {
			return nil, ErrAwaitingOpponent
		}
		r.StopForfeit()
		r.Force(rules.Result{Winner: seat.Opponent(), Reason: rules.ReasonResignation})
		c.commit(ctx, r)
		return r.View(), nil
	})
}

// OfferDraw records a pending draw offer. Re-offering is a no-op.
func (c *Coordinator) OfferDraw(ctx context.Context, roomID, address string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if r.Finished() {
			return nil, ErrGameOver
		}
		seat, ok := r.SeatOf(strings.TrimSpace(address))
		if !ok {
			return nil, ErrNotSeated
		}
		if r.Status() != room.StatusActive {
			return nil, ErrAwaitingOpponent
		}
		if r.DrawOfferBy != seat {
			r.DrawOfferBy = seat
			c.commit(ctx, r)
		}
		return r.View(), nil
	})
}

// AcceptDraw completes a pending offer made by the other side.
func (c *Coordinator) AcceptDraw(ctx context.Context, roomID, address string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if r.Finished() {
			return nil, ErrGameOver
		}
		seat, ok := r.SeatOf(strings.TrimSpace(address))
		if !ok {
			return nil, ErrNotSeated
		}
		if r.DrawOfferBy == "" {
			return nil, ErrNoDrawOffer
		}
		if r.DrawOfferBy == seat {
			return nil, ErrOwnDrawOffer
		}
		r.StopForfeit()
		r.Force(rules.Result{Reason: rules.ReasonDrawAgreement})
		c.commit(ctx, r)
		return r.View(), nil
	})
}

// OfferRematch records a rematch offer on a finished game. Against a human
// the reset happens when both seats have offered; against the engine the
// single human offer completes immediately.
func (c *Coordinator) OfferRematch(ctx context.Context, roomID, address string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if !r.Finished() {
			return nil, ErrGameInProgress
		}
		seat, ok := r.SeatOf(strings.TrimSpace(address))
		if !ok {
			return nil, ErrNotSeated
		}
		r.RematchOffers[seat] = true
		if r.AI.Enabled || (r.RematchOffers[rules.White] && r.RematchOffers[rules.Black]) {
			r.ResetForRematch(c.cfg.clock())
			obslog.L().Info("rematch_started", zap.String("room_id", r.ID), zap.Int("game_no", r.GameNo))
		}
		c.commit(ctx, r)
		return r.View(), nil
	})
}

// EnterChat registers the address in the room's chat roster.
func (c *Coordinator) EnterChat(ctx context.Context, roomID, address, username, avatar string) (*wire.GameState, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		if err := r.EnterChat(address, username, avatar); err != nil {
			return nil, err
		}
		c.commit(ctx, r)
		return r.View(), nil
	})
}

// SendChat appends a chat message, entering the sender into the roster under
// a resolved or generated identity when they never introduced themselves.
func (c *Coordinator) SendChat(ctx context.Context, roomID, address, text string) (*wire.GameState, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	text, err := room.ValidateChatText(text)
	if err != nil {
		return nil, err
	}

	known := false
	if _, err := c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		_, known = r.Roster[address]
		return nil, nil
	}); err != nil {
		return nil, err
	}

	var prof profile.Profile
	if !known {
		prof = c.resolveProfile(ctx, address)
	}

	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		p, ok := r.Roster[address]
		if !ok {
			p = room.ChatProfile{Username: prof.Username, Avatar: prof.Avatar}
			r.Roster[address] = p
		}
		r.AppendMessage(room.ChatMessage{
			ID:       uuid.NewString(),
			Address:  address,
			Username: p.Username,
			Text:     text,
			SentAt:   c.now(),
		})
		c.commit(ctx, r)
		return r.View(), nil
	})
}

func (c *Coordinator) resolveProfile(ctx context.Context, address string) profile.Profile {
	if c.resolver == nil {
		return profile.Generated(address)
	}
	p, err := c.resolver.Resolve(ctx, address)
	if err != nil {
		obslog.L().Warn("profile_resolve", zap.String("address", address), zap.Error(err))
		return profile.Generated(address)
	}
	return p
}

// EscrowLog records an opaque client-reported escrow action in the audit
// sink. It never touches match state.
func (c *Coordinator) EscrowLog(ctx context.Context, roomID, address, action string, detail []byte) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrInvalidAddress
	}
	var gameNo int
	if _, err := c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		gameNo = r.GameNo
		return nil, nil
	}); err != nil {
		return err
	}
	if err := c.archive.LogEvent(ctx, escrow.Event{
		RoomID:  roomID,
		GameNo:  gameNo,
		Address: address,
		Action:  strings.TrimSpace(action),
		Detail:  detail,
	}); err != nil {
		obslog.L().Warn("escrow_log", zap.String("room_id", roomID), zap.Error(err))
	}
	return nil
}

// RoomView returns the room's current state without mutating it beyond the
// usual lazy clock decay.
func (c *Coordinator) RoomView(ctx context.Context, roomID string) (*wire.GameState, error) {
	return c.withRoom(ctx, roomID, func(r *room.Room) (*wire.GameState, error) {
		wasFinished := r.Finished()
		r.Decay(c.now())
		if r.Finished() && !wasFinished {
			c.commit(ctx, r)
		}
		return r.View(), nil
	})
}

// refreshForfeitLocked re-evaluates the disconnect countdown after the
// connection set changed or a restore: cancel a countdown whose conditions
// no longer hold, then arm one for a seated side that is offline while its
// opponent is attached. Caller holds the room lock.
func (c *Coordinator) refreshForfeitLocked(r *room.Room) {
	if r.Finished() || r.Status() != room.StatusActive {
		r.StopForfeit()
		return
	}
	if f := r.Forfeit; f != nil {
		if !r.ColorOnline(f.Color) && r.ColorOnline(f.Color.Opponent()) {
			// still valid, keep the original deadline
			return
		}
		r.StopForfeit()
		obslog.L().Info("forfeit_cancelled", zap.String("room_id", r.ID), zap.String("color", string(f.Color)))
	}
	for _, color := range []rules.Color{rules.White, rules.Black} {
		if !r.ColorOnline(color) && r.ColorOnline(color.Opponent()) {
			c.startForfeitLocked(r, color)
			return
		}
	}
}

// startForfeitLocked arms (or re-arms) the disconnect countdown for color.
// Caller holds the room lock.
func (c *Coordinator) startForfeitLocked(r *room.Room, color rules.Color) {
	r.StopForfeit()
	deadline := c.now().Add(c.cfg.ForfeitWindow)
	f := &room.Forfeit{Color: color, DeadlineAt: deadline}
	f.Timer = time.AfterFunc(c.cfg.ForfeitWindow, func() {
		c.expireForfeit(r, color, deadline)
	})
	r.Forfeit = f
	obslog.L().Info("forfeit_started",
		zap.String("room_id", r.ID),
		zap.String("color", string(color)),
		zap.Time("deadline", deadline))
}

func (c *Coordinator) expireForfeit(r *room.Room, color rules.Color, deadline time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r.Lock()
	defer r.Unlock()
	f := r.Forfeit
	if f == nil || f.Color != color || !f.DeadlineAt.Equal(deadline) {
		return
	}
	r.Forfeit = nil
	if r.Finished() || r.Evicted() {
		return
	}
	if r.AddressOnline(r.Seat(color)) {
		return
	}
	if !r.ColorOnline(color.Opponent()) {
		// nobody left to award the game to; persist and drop the instance
		c.evictLocked(ctx, r)
		return
	}
	r.Force(rules.Result{Winner: color.Opponent(), Reason: rules.ReasonForfeit})
	obslog.L().Info("forfeit_expired", zap.String("room_id", r.ID), zap.String("color", string(color)))
	c.commit(ctx, r)
	if r.ConnCount() == 0 {
		c.evictLocked(ctx, r)
	}
}

// Run drives the periodic clock tick until ctx is cancelled. Each tick decays
// running clocks and pushes fresh state to attached connections; the snapshot
// is only rewritten when the decay produced a result. Rooms left behind with
// no connections are swept out of the registry.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	c.mu.Lock()
	live := make([]*room.Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		live = append(live, r)
	}
	c.mu.Unlock()

	for _, r := range live {
		r.Lock()
		if r.Evicted() {
			r.Unlock()
			continue
		}
		if r.ConnCount() == 0 {
			c.sweepIdleLocked(ctx, r)
			r.Unlock()
			continue
		}
		if !r.Clock.Running || r.Finished() {
			r.Unlock()
			continue
		}
		r.Decay(c.now())
		if r.Finished() {
			c.commit(ctx, r)
		} else {
			r.Broadcast(&wire.ServerMessage{Type: wire.PushGameState, State: r.View()})
		}
		r.Unlock()
	}
}

// sweepIdleLocked bounds the registry: a zero-connection room created over
// HTTP or restored for a view is evicted back to the store, and a room whose
// creator never attached at all is deleted once the attach grace passes. A
// pending countdown keeps the room live for its expiry callback.
func (c *Coordinator) sweepIdleLocked(ctx context.Context, r *room.Room) {
	if r.Forfeit != nil {
		return
	}
	if r.Started() {
		c.evictLocked(ctx, r)
		return
	}
	if c.now().Sub(r.CreatedAt) > c.cfg.ForfeitWindow {
		c.dropLocked(ctx, r)
	}
}

// withRoom resolves the room (live registry first, then the store) and runs
// fn under its lock, retrying when it raced an eviction.
func (c *Coordinator) withRoom(ctx context.Context, roomID string, fn func(*room.Room) (*wire.GameState, error)) (*wire.GameState, error) {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))
	if roomID == "" {
		return nil, ErrRoomNotFound
	}
	for attempt := 0; attempt < 3; attempt++ {
		r, err := c.resolve(ctx, roomID)
		if err != nil {
			return nil, err
		}
		r.Lock()
		if r.Evicted() {
			r.Unlock()
			continue
		}
		view, err := fn(r)
		r.Unlock()
		return view, err
	}
	return nil, ErrRoomNotFound
}

func (c *Coordinator) resolve(ctx context.Context, roomID string) (*room.Room, error) {
	c.mu.Lock()
	if r, ok := c.rooms[roomID]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	snap, err := c.store.Get(ctx, roomID)
	if err != nil {
		obslog.L().Warn("room_load", zap.String("room_id", roomID), zap.Error(err))
		return nil, ErrRoomNotFound
	}
	if snap == nil {
		return nil, ErrRoomNotFound
	}
	r, err := room.FromSnapshot(snap)
	if err != nil {
		obslog.L().Error("room_restore", zap.String("room_id", roomID), zap.Error(err))
		return nil, ErrRoomNotFound
	}

	c.mu.Lock()
	if existing, ok := c.rooms[roomID]; ok {
		// another caller restored it first
		c.mu.Unlock()
		return existing, nil
	}
	c.rooms[roomID] = r
	c.mu.Unlock()
	obslog.L().Info("room_restored", zap.String("room_id", roomID), zap.Int("game_no", r.GameNo))

	// transients start empty on restore; decide whether a countdown applies
	r.Lock()
	c.refreshForfeitLocked(r)
	r.Unlock()
	return r, nil
}

// commit is the write-through after a mutation: persist the snapshot (a
// store failure degrades durability, never the command), push state to every
// connection, and archive a freshly terminal game exactly once. Caller holds
// the room lock.
func (c *Coordinator) commit(ctx context.Context, r *room.Room) {
	if err := c.store.Save(ctx, r.Snapshot()); err != nil {
		obslog.L().Warn("room_persist", zap.String("room_id", r.ID), zap.Error(err))
	}
	r.Broadcast(&wire.ServerMessage{Type: wire.PushGameState, State: r.View()})

	res := r.Result()
	if res == nil || r.Archived {
		return
	}
	r.Archived = true
	rec := &escrow.GameRecord{
		RoomID:    r.ID,
		GameNo:    r.GameNo,
		White:     r.White,
		Black:     r.Black,
		Result:    *res,
		MovesSAN:  r.Position.MovesSAN(),
		StartedAt: r.CreatedAt,
		EndedAt:   c.now(),
	}
	go func() {
		actx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.archive.SaveResult(actx, rec); err != nil {
			obslog.L().Error("result_archive", zap.String("room_id", rec.RoomID), zap.Error(err))
		}
	}()
}
