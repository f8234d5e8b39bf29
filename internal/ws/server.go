package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/mavelar/chainchess/internal/ai"
	"github.com/mavelar/chainchess/internal/match"
	"github.com/mavelar/chainchess/internal/msgcat"
	"github.com/mavelar/chainchess/internal/obslog"
	"github.com/mavelar/chainchess/internal/room"
	"github.com/mavelar/chainchess/internal/rules"
	"github.com/mavelar/chainchess/pkg/wire"
)

// Server upgrades /ws requests and pumps commands into the coordinator.
type Server struct {
	coord   *match.Coordinator
	cat     *msgcat.Catalog
	origins []string
}

func NewServer(coord *match.Coordinator, cat *msgcat.Catalog, origins []string) *Server {
	return &Server{coord: coord, cat: cat, origins: origins}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns:  s.origins,
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			obslog.L().Warn("ws_accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		cl := newClient(conn)
		defer cl.close()
		go cl.writeLoop(r.Context())
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.coord.Detach(dctx, cl)
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					obslog.L().Debug("ws_read", zap.Error(err))
				}
				return
			}

			var cmd wire.Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				cl.Send(&wire.ServerMessage{Type: wire.PushError, Error: s.cat.Render("errors.parse", nil)})
				continue
			}
			s.dispatch(r.Context(), cl, &cmd)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cl *client, cmd *wire.Command) {
	var (
		state *wire.GameState
		err   error
	)
	switch cmd.Type {
	case wire.CmdCreateRoom:
		state, err = s.coord.CreateRoom(ctx, cl, cmd.Address)
	case wire.CmdJoinRoom:
		state, err = s.coord.JoinRoom(ctx, cl, cmd.RoomID, cmd.Address)
	case wire.CmdResumeRoom:
		state, err = s.coord.ResumeRoom(ctx, cl, cmd.RoomID, cmd.Address)
	case wire.CmdSetAILevel:
		state, err = s.coord.SetAILevel(ctx, cmd.RoomID, cmd.Address, cmd.Level)
	case wire.CmdMakeMove:
		state, err = s.coord.Move(ctx, cmd.RoomID, cmd.Address, cmd.From, cmd.To, cmd.Promotion)
	case wire.CmdOfferDraw:
		state, err = s.coord.OfferDraw(ctx, cmd.RoomID, cmd.Address)
	case wire.CmdAcceptDraw:
		state, err = s.coord.AcceptDraw(ctx, cmd.RoomID, cmd.Address)
	case wire.CmdResign:
		state, err = s.coord.Resign(ctx, cmd.RoomID, cmd.Address)
	case wire.CmdOfferRematch:
		state, err = s.coord.OfferRematch(ctx, cmd.RoomID, cmd.Address)
	case wire.CmdEnterChat:
		state, err = s.coord.EnterChat(ctx, cmd.RoomID, cmd.Address, cmd.Username, cmd.Avatar)
	case wire.CmdSendChat:
		state, err = s.coord.SendChat(ctx, cmd.RoomID, cmd.Address, cmd.Text)
	case wire.CmdEscrowLog:
		err = s.coord.EscrowLog(ctx, cmd.RoomID, cmd.Address, cmd.Action, cmd.Detail)
	default:
		cl.Send(&wire.ServerMessage{
			Type:  wire.PushError,
			Error: s.cat.Render(s.errorKey(match.ErrUnknownCommand), map[string]string{"Type": cmd.Type}),
		})
		return
	}
	if err != nil {
		cl.Send(&wire.ServerMessage{Type: wire.PushError, Error: s.cat.Render(s.errorKey(err), nil)})
		return
	}
	if state != nil {
		cl.Send(&wire.ServerMessage{Type: wire.PushGameState, State: state})
	}
}

// errorKey maps coordinator sentinels onto catalog keys. Anything unmapped
// is an internal failure and gets logged.
func (s *Server) errorKey(err error) string {
	switch {
	case errors.Is(err, match.ErrInvalidAddress):
		return "errors.address_required"
	case errors.Is(err, match.ErrRoomNotFound):
		return "errors.room_not_found"
	case errors.Is(err, match.ErrRoomFull):
		return "errors.room_full"
	case errors.Is(err, match.ErrNotSeated):
		return "errors.not_seated"
	case errors.Is(err, match.ErrWrongTurn):
		return "errors.wrong_turn"
	case errors.Is(err, match.ErrGameOver):
		return "errors.game_over"
	case errors.Is(err, match.ErrGameInProgress):
		return "errors.game_in_progress"
	case errors.Is(err, match.ErrAwaitingOpponent):
		return "errors.awaiting_opponent"
	case errors.Is(err, rules.ErrIllegalMove):
		return "errors.illegal_move"
	case errors.Is(err, match.ErrNotOwner):
		return "errors.not_owner"
	case errors.Is(err, match.ErrAIRoom):
		return "errors.ai_room"
	case errors.Is(err, match.ErrAILocked):
		return "errors.ai_locked"
	case errors.Is(err, ai.ErrUnknownLevel):
		return "errors.unknown_level"
	case errors.Is(err, match.ErrNoDrawOffer):
		return "errors.no_draw_offer"
	case errors.Is(err, match.ErrOwnDrawOffer):
		return "errors.own_draw_offer"
	case errors.Is(err, room.ErrUsernameLength):
		return "errors.username_length"
	case errors.Is(err, room.ErrEmptyMessage):
		return "errors.message_empty"
	case errors.Is(err, room.ErrMessageTooLong):
		return "errors.message_too_long"
	case errors.Is(err, match.ErrUnknownCommand):
		return "errors.unknown_command"
	default:
		obslog.L().Error("command_failed", zap.Error(err))
		return "errors.internal"
	}
}
