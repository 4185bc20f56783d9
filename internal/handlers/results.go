package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/aaronzipp/who-is-the-impostor/internal/identity"
	"github.com/aaronzipp/who-is-the-impostor/internal/render"
)

const qrSize = 320

// HandleView returns the room as the caller may see it. Callers without a
// seat get the spectator projection.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.projector.Load(r.Context(), room.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	playerID, _ := identity.FromRequest(w, r).PlayerID(room.Code)
	writeJSON(w, http.StatusOK, render.ForPlayer(view, playerID, h.game.Settings().MinPlayers))
}

// HandleQR serves a PNG QR code of the room's join URL
func (h *Handler) HandleQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	png, err := qrcode.Encode(scheme+"://"+r.Host+"/rooms/"+room.Code, qrcode.Medium, qrSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}
