package handlers

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// hostAction runs op for the room's host and answers 204
func (h *Handler) hostAction(name string, op func(ctx context.Context, roomID string) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		room, err := h.room(r, ps)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		host, err := h.currentHost(w, r, room)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := op(r.Context(), room.ID); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.log.WithFields(logrus.Fields{"room": room.ID, "host": host.ID}).Infof("Host ran %s", name)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleStartGame starts the game in a waiting room
func (h *Handler) HandleStartGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.hostAction("start", h.game.StartGame)(w, r, ps)
}

// HandleRestartGame deals new roles and a new word and opens round 1
func (h *Handler) HandleRestartGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.hostAction("restart", h.game.RestartGame)(w, r, ps)
}

// HandleExitToLobby returns the room to waiting
func (h *Handler) HandleExitToLobby(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.hostAction("exit", h.game.ExitToLobby)(w, r, ps)
}

// HandleResolveRound lets the host close voting early, for instance when a
// player left without voting
func (h *Handler) HandleResolveRound(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.currentHost(w, r, room); err != nil {
		h.writeError(w, r, err)
		return
	}
	round, err := h.game.CurrentRound(r.Context(), room.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.game.ResolveRound(r.Context(), round.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
