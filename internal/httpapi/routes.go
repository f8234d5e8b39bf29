package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mavelar/chainchess/internal/match"
	"github.com/mavelar/chainchess/internal/ws"
)

func SetupRoutes(coord *match.Coordinator, sock *ws.Server) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(coord))
	r.Get("/rooms/{id}", GetRoom(coord))
	r.Get("/healthz", Healthz)
	r.Get("/ws", sock.Handler())
	return r
}
