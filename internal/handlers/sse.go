package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/identity"
	"github.com/aaronzipp/who-is-the-impostor/internal/live"
	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/render"
	"github.com/aaronzipp/who-is-the-impostor/internal/sse"
)

// HandleSSE streams the caller's view of the room as Server-Sent Events:
// the whole view as JSON plus ready-made HTML fragments
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	playerID, _ := identity.FromRequest(w, r).PlayerID(room.Code)
	log := h.log.WithFields(logrus.Fields{"room": room.ID, "player": playerID})

	client, err := h.hub.Subscribe(room.ID, playerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer h.hub.Unsubscribe(client)

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.WithError(err).Warn("Clearing write deadline failed")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()
	log.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Debug("SSE client disconnected")
			return
		case v, ok := <-client.Updates():
			if !ok {
				return
			}
			if err := h.writeEvents(w, v, playerID); err != nil {
				log.WithError(err).Debug("SSE write failed")
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeEvents(w io.Writer, v *live.View, playerID string) error {
	minPlayers := h.game.Settings().MinPlayers
	pv := render.ForPlayer(v, playerID, minPlayers)

	data, err := json.Marshal(pv)
	if err != nil {
		return err
	}
	events := [][2]string{
		{sse.EventView, string(data)},
		{sse.EventPlayerUpdate, render.PlayerList(pv)},
		{sse.EventControlsUpdate, render.HostControls(pv, minPlayers)},
	}
	if pv.Round != nil {
		events = append(events, [2]string{sse.EventClueUpdate, render.ClueList(pv)})
		if pv.Round.Status == models.RoundVoting {
			count := render.VoteCount(pv.Round.VoteCount, pv.AlivePlayers)
			if pv.Me != nil && pv.Me.HasVoted {
				count = render.VotedConfirmation() + count
			}
			events = append(events, [2]string{sse.EventVoteCount, count})
		}
	}
	if pv.Status == models.RoomFinished {
		events = append(events, [2]string{sse.EventResult, render.Result(pv)})
	}

	for _, e := range events {
		if err := sse.Write(w, e[0], e[1]); err != nil {
			return err
		}
	}
	return nil
}

type wsIncoming struct {
	Type     string `json:"type"`
	RoundID  string `json:"round_id"`
	Text     string `json:"clue_text"`
	TargetID string `json:"voted_for_id"`
}

type wsOutgoing struct {
	Type  string       `json:"type"`
	View  *render.View `json:"view,omitempty"`
	Error string       `json:"error,omitempty"`
}

// HandleWebsocket streams views as JSON messages and accepts clue and vote
// messages from seated players
func (h *Handler) HandleWebsocket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.room(r, ps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	player, err := h.currentPlayer(w, r, room)
	if err != nil && !errors.Is(err, errNoSession) && !errors.Is(err, errNotMember) {
		h.writeError(w, r, err)
		return
	}
	playerID := ""
	if player != nil {
		playerID = player.ID
	}
	log := h.log.WithFields(logrus.Fields{"room": room.ID, "player": playerID})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	client, err := h.hub.Subscribe(room.ID, playerID)
	if err != nil {
		log.WithError(err).Warn("Subscribing websocket failed")
		return
	}
	defer h.hub.Unsubscribe(client)

	replies := make(chan wsOutgoing, 8)
	done := make(chan struct{})
	defer close(done)
	go h.wsWritePump(conn, client, playerID, replies, done, log)

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			log.WithError(err).Debug("Websocket closed")
			return
		}

		var opErr error
		switch {
		case player == nil:
			opErr = errNoSession
		case msg.Type == "clue":
			opErr = h.submitClue(r.Context(), room, player, clueRequest{RoundID: msg.RoundID, Text: msg.Text})
		case msg.Type == "vote":
			opErr = h.castVote(r.Context(), room, player, voteRequest{RoundID: msg.RoundID, TargetID: msg.TargetID})
		default:
			continue
		}
		if opErr == nil {
			continue
		}
		reply := wsOutgoing{Type: "error", Error: opErr.Error()}
		if statusFor(opErr) == http.StatusInternalServerError {
			log.WithError(opErr).Error("Websocket action failed")
			reply.Error = http.StatusText(http.StatusInternalServerError)
		}
		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *Handler) wsWritePump(conn *websocket.Conn, client *sse.Client, playerID string, replies <-chan wsOutgoing, done <-chan struct{}, log *logrus.Entry) {
	minPlayers := h.game.Settings().MinPlayers
	for {
		var msg wsOutgoing
		select {
		case <-done:
			return
		case v, ok := <-client.Updates():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				_ = conn.Close()
				return
			}
			msg = wsOutgoing{Type: "view", View: render.ForPlayer(v, playerID, minPlayers)}
		case msg = <-replies:
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("Websocket write failed")
			_ = conn.Close()
			return
		}
	}
}
