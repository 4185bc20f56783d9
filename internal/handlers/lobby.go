package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
	"github.com/aaronzipp/who-is-the-impostor/internal/identity"
	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

type createRoomRequest struct {
	Name          string `json:"name"`
	MaxPlayers    *int   `json:"max_players"`
	ImpostorCount *int   `json:"impostor_count"`
	MaxRounds     *int   `json:"max_rounds"`
}

func (req *createRoomRequest) fromForm(form url.Values) error {
	req.Name = form.Get("name")
	for key, dst := range map[string]**int{
		"max_players":    &req.MaxPlayers,
		"impostor_count": &req.ImpostorCount,
		"max_rounds":     &req.MaxRounds,
	} {
		raw := form.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", game.ErrValidation, key)
		}
		*dst = &n
	}
	return nil
}

// orDefault returns *n, or def when the field was left out
func orDefault(n *int, def int) int {
	if n == nil {
		return def
	}
	return *n
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

func (req *joinRoomRequest) fromForm(form url.Values) error {
	req.Name = form.Get("name")
	return nil
}

type roomResponse struct {
	Room   *models.Room   `json:"room"`
	Player *models.Player `json:"player,omitempty"`
}

// HandleCreateRoom creates a new room. With a name the creator joins it
// straight away and becomes host.
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := createRoomRequest{}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	room, err := h.game.CreateRoom(r.Context(),
		orDefault(req.MaxPlayers, game.DefaultMaxPlayers),
		orDefault(req.ImpostorCount, game.DefaultImpostorCount),
		orDefault(req.MaxRounds, game.DefaultMaxRounds),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res := roomResponse{Room: room}

	if req.Name != "" {
		player, err := h.join(w, r, room.Code, req.Name)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		res.Player = player
	}

	w.Header().Set("HX-Redirect", "/rooms/"+room.Code)
	writeJSON(w, http.StatusCreated, res)
}

// HandleJoinRoom adds the caller to the room and remembers them in a cookie
func (h *Handler) HandleJoinRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := game.NormalizeCode(ps.ByName("code"))
	req := joinRoomRequest{}
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if room, err := h.game.RoomByCode(r.Context(), code); err == nil {
		if p, err := h.currentPlayer(w, r, room); err == nil {
			// reload after joining: keep the existing seat
			writeJSON(w, http.StatusOK, roomResponse{Room: room, Player: p})
			return
		}
	}

	player, err := h.join(w, r, code, req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	room, err := h.game.Room(r.Context(), player.RoomID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("HX-Redirect", "/rooms/"+room.Code)
	writeJSON(w, http.StatusCreated, roomResponse{Room: room, Player: player})
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request, code, name string) (*models.Player, error) {
	player, err := h.game.JoinRoom(r.Context(), code, name)
	if err != nil {
		return nil, err
	}
	if err := identity.FromRequest(w, r).SetPlayerID(code, player.ID); err != nil {
		return nil, fmt.Errorf("remembering player: %w", err)
	}
	h.log.WithFields(logrus.Fields{"code": code, "player": player.ID}).Debug("Session cookie set")
	return player, nil
}

// room resolves the :code route parameter
func (h *Handler) room(r *http.Request, ps httprouter.Params) (*models.Room, error) {
	return h.game.RoomByCode(r.Context(), ps.ByName("code"))
}
