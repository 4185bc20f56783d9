package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/julienschmidt/httprouter"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

type clueRequest struct {
	RoundID string `json:"round_id"`
	Text    string `json:"clue_text"`
}

func (req *clueRequest) fromForm(form url.Values) error {
	req.RoundID = form.Get("round_id")
	req.Text = form.Get("clue_text")
	return nil
}

type voteRequest struct {
	RoundID  string `json:"round_id"`
	TargetID string `json:"voted_for_id"`
}

func (req *voteRequest) fromForm(form url.Values) error {
	req.RoundID = form.Get("round_id")
	req.TargetID = form.Get("voted_for_id")
	return nil
}

// roundID returns explicit, or the room's current round when empty.
// Naming the round keeps a late request from landing in the next one.
func (h *Handler) roundID(ctx context.Context, room *models.Room, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	round, err := h.game.CurrentRound(ctx, room.ID)
	if err != nil {
		return "", err
	}
	return round.ID, nil
}

func (h *Handler) submitClue(ctx context.Context, room *models.Room, player *models.Player, req clueRequest) error {
	roundID, err := h.roundID(ctx, room, req.RoundID)
	if err != nil {
		return err
	}
	return h.game.SubmitClue(ctx, roundID, player.ID, req.Text)
}

func (h *Handler) castVote(ctx context.Context, room *models.Room, player *models.Player, req voteRequest) error {
	roundID, err := h.roundID(ctx, room, req.RoundID)
	if err != nil {
		return err
	}
	return h.game.CastVote(ctx, roundID, player.ID, req.TargetID)
}

// HandleSubmitClue records the caller's clue
func (h *Handler) HandleSubmitClue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := clueRequest{}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	player, err := h.currentPlayer(w, r, room)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.submitClue(r.Context(), room, player, req); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCastVote records the caller's vote
func (h *Handler) HandleCastVote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := voteRequest{}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	player, err := h.currentPlayer(w, r, room)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.castVote(r.Context(), room, player, req); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
