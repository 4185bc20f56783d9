package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
	"github.com/aaronzipp/who-is-the-impostor/internal/live"
	"github.com/aaronzipp/who-is-the-impostor/internal/sse"
)

// Handler holds shared application dependencies
type Handler struct {
	game      *game.Game
	projector *live.Projector
	hub       *sse.Hub
	log       *logrus.Entry
	upgrader  websocket.Upgrader
}

// New creates the HTTP adapter over g
func New(g *game.Game, p *live.Projector, hub *sse.Hub, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		game:      g,
		projector: p,
		hub:       hub,
		log:       log.WithField("component", "http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes registers every endpoint on a new router
func (h *Handler) Routes() http.Handler {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		h.log.WithField("path", r.URL.Path).Errorf("Panic serving request: %v", v)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}

	mux.GET("/healthz", h.HandleHealth)

	mux.POST("/rooms", h.HandleCreateRoom)
	mux.GET("/rooms/:code", h.HandleView)
	mux.GET("/rooms/:code/qr", h.HandleQR)
	mux.GET("/rooms/:code/events", h.HandleSSE)
	mux.GET("/rooms/:code/ws", h.HandleWebsocket)
	mux.POST("/rooms/:code/join", h.HandleJoinRoom)

	mux.POST("/rooms/:code/start", h.HandleStartGame)
	mux.POST("/rooms/:code/restart", h.HandleRestartGame)
	mux.POST("/rooms/:code/exit", h.HandleExitToLobby)
	mux.POST("/rooms/:code/resolve", h.HandleResolveRound)

	mux.POST("/rooms/:code/clues", h.HandleSubmitClue)
	mux.POST("/rooms/:code/votes", h.HandleCastVote)

	return mux
}

// HandleHealth reports liveness
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "live_rooms": h.hub.Rooms()})
}
