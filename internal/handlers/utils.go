package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
	"github.com/aaronzipp/who-is-the-impostor/internal/identity"
	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

const maxBodyBytes = 1 << 16

var (
	errNoSession = errors.New("no session for this room")
	errNotMember = errors.New("not a member of this room")
	errNotHost   = errors.New("only the host can do that")
)

// formRequest is a request body that can also arrive as a plain HTML form
type formRequest interface {
	fromForm(url.Values) error
}

// decode reads a JSON or form-encoded body into dst
func decode(w http.ResponseWriter, r *http.Request, dst formRequest) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(dst)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: malformed body: %v", game.ErrValidation, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: malformed form: %v", game.ErrValidation, err)
	}
	return dst.fromForm(r.PostForm)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps game errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrInvalidState),
		errors.Is(err, game.ErrCapacity),
		errors.Is(err, game.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, errNotMember), errors.Is(err, errNotHost):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := h.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		msg = http.StatusText(status)
	} else {
		log.WithError(err).Debug("Request rejected")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// currentPlayer validates membership using the room's identity cookie. A
// missing or foreign cookie yields errNoSession or errNotMember.
func (h *Handler) currentPlayer(w http.ResponseWriter, r *http.Request, room *models.Room) (*models.Player, error) {
	id, ok := identity.FromRequest(w, r).PlayerID(room.Code)
	if !ok {
		return nil, errNoSession
	}
	players, err := h.game.Players(r.Context(), room.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errNotMember
}

func (h *Handler) currentHost(w http.ResponseWriter, r *http.Request, room *models.Room) (*models.Player, error) {
	p, err := h.currentPlayer(w, r, room)
	if err != nil {
		return nil, err
	}
	if !p.IsHost {
		return nil, errNotHost
	}
	return p, nil
}
