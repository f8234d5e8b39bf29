package match

// Errors returned by coordinator operations. The websocket layer maps these
// to catalog keys before they reach a client.
var (
	ErrRoomNotFound     = errf("room not found")
	ErrRoomFull         = errf("room already has two players")
	ErrNotSeated        = errf("address is not seated in this room")
	ErrWrongTurn        = errf("not this player's turn")
	ErrGameOver         = errf("game is already finished")
	ErrGameInProgress   = errf("game is already in progress")
	ErrAwaitingOpponent = errf("waiting for an opponent")
	ErrNotOwner         = errf("only the room creator may do this")
	ErrAIRoom           = errf("seat is reserved for the engine")
	ErrAILocked         = errf("engine level is locked after the first move")
	ErrInvalidAddress   = errf("address is required")
	ErrNoDrawOffer      = errf("no draw offer is pending")
	ErrOwnDrawOffer     = errf("cannot accept your own draw offer")
	ErrUnknownCommand   = errf("unknown command")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
