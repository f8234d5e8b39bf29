package wire

import "encoding/json"

// Command types accepted over the realtime socket.
const (
	CmdCreateRoom   = "create_room"
	CmdJoinRoom     = "join_room"
	CmdResumeRoom   = "resume_room"
	CmdSetAILevel   = "set_ai_level"
	CmdMakeMove     = "make_move"
	CmdOfferDraw    = "offer_draw"
	CmdAcceptDraw   = "accept_draw"
	CmdResign       = "resign"
	CmdOfferRematch = "offer_rematch"
	CmdEnterChat    = "enter_chat"
	CmdSendChat     = "send_chat"
	CmdEscrowLog    = "escrow_log"
)

// Push types sent by the server.
const (
	PushGameState = "game_state"
	PushError     = "error"
)

// Command is the envelope for every inbound client message. The actor is
// authenticated by the wallet address in the payload, not by the connection.
type Command struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Address string `json:"address,omitempty"`

	// make_move
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`

	// set_ai_level
	Level string `json:"level,omitempty"`

	// enter_chat / send_chat
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Text     string `json:"text,omitempty"`

	// escrow_log
	Action string          `json:"action,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// ServerMessage is the envelope for every outbound push.
type ServerMessage struct {
	Type  string     `json:"type"`
	State *GameState `json:"state,omitempty"`
	Error string     `json:"error,omitempty"`
}
