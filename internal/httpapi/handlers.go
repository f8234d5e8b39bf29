package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mavelar/chainchess/internal/match"
)

type createRoomRequest struct {
	Address string `json:"address"`
}

// CreateRoom allocates a room over plain HTTP; the creator attaches over the
// socket afterwards with resume_room.
func CreateRoom(coord *match.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		state, err := coord.CreateRoom(r.Context(), nil, req.Address)
		if err != nil {
			if errors.Is(err, match.ErrInvalidAddress) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(state)
	}
}

func GetRoom(coord *match.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := coord.RoomView(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, match.ErrRoomNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to load room", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(state)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
