package wire

import "time"

// GameState is the full serialized room view pushed to every attached
// connection after each mutation and on the periodic clock tick.
type GameState struct {
	RoomID        string        `json:"roomId"`
	FEN           string        `json:"fen"`
	Turn          string        `json:"turn"`
	Status        string        `json:"status"`
	GameNo        int           `json:"gameNo"`
	Players       Players       `json:"players"`
	Online        Online        `json:"online"`
	Result        *Result       `json:"result,omitempty"`
	DrawOfferBy   string        `json:"drawOfferBy,omitempty"`
	RematchOffers []string      `json:"rematchOffers,omitempty"`
	Clock         Clock         `json:"clock"`
	AI            AIState       `json:"ai"`
	Chat          Chat          `json:"chat"`
	MovesSAN      []string      `json:"movesSan"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type Players struct {
	White string `json:"white,omitempty"`
	Black string `json:"black,omitempty"`
}

type Online struct {
	White bool `json:"white"`
	Black bool `json:"black"`
}

type Result struct {
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason"`
}

type Clock struct {
	WhiteMs     int64 `json:"whiteMs"`
	BlackMs     int64 `json:"blackMs"`
	IncrementMs int64 `json:"incrementMs"`
	Running     bool  `json:"running"`
}

type AIState struct {
	Enabled  bool   `json:"enabled"`
	Level    string `json:"level,omitempty"`
	Thinking bool   `json:"thinking"`
}

type Chat struct {
	Roster   map[string]ChatProfile `json:"roster,omitempty"`
	Messages []ChatMessage          `json:"messages,omitempty"`
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
	SentAt   time.Time `json:"sentAt"`
}
