package sse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/live"
)

// ErrClosed is returned by Subscribe after the hub has been closed
var ErrClosed = errors.New("sse: hub closed")

// Hub fans a room's views out to every connected client. One projector
// watch runs per room while at least one client is connected.
type Hub struct {
	projector *live.Projector
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	feeds  map[string]*feed
	closed bool
}

type feed struct {
	roomID  string
	watch   *live.Watch
	clients map[*Client]struct{}
	last    *live.View
}

// Client receives views for one room. Only the newest undelivered view is
// kept, so a slow client skips intermediate states.
type Client struct {
	RoomID   string
	PlayerID string
	updates  chan *live.View
}

// Updates is closed when the hub shuts down
func (c *Client) Updates() <-chan *live.View {
	return c.updates
}

// offer replaces any pending view with v. Callers hold the hub lock.
func (c *Client) offer(v *live.View) {
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- v:
	default:
	}
}

// NewHub creates a hub reading views from p
func NewHub(p *live.Projector, log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		projector: p,
		log:       log.WithField("component", "sse"),
		ctx:       ctx,
		cancel:    cancel,
		feeds:     make(map[string]*feed),
	}
}

// Subscribe adds a client to roomID. The first client of a room starts the
// watch; later clients get the last known view right away.
func (h *Hub) Subscribe(roomID, playerID string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	c := &Client{RoomID: roomID, PlayerID: playerID, updates: make(chan *live.View, 1)}
	log := h.log.WithFields(logrus.Fields{"room": roomID, "player": playerID})

	f, ok := h.feeds[roomID]
	if !ok {
		f = &feed{roomID: roomID, clients: make(map[*Client]struct{})}
		w, err := h.projector.Watch(h.ctx, roomID, func(v *live.View) { h.broadcast(f, v) })
		if err != nil {
			return nil, fmt.Errorf("watching room: %w", err)
		}
		f.watch = w
		h.feeds[roomID] = f
		log.Debug("Room feed started")
	}

	for existing := range f.clients {
		if existing.PlayerID == playerID && playerID != "" {
			log.Warn("Player opened an additional connection")
			break
		}
	}
	f.clients[c] = struct{}{}
	if f.last != nil {
		c.offer(f.last)
	}
	log.WithField("clients", len(f.clients)).Debug("Client subscribed")
	return c, nil
}

// Unsubscribe removes c. The room's watch stops with its last client.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	f, ok := h.feeds[c.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(f.clients, c)
	remaining := len(f.clients)
	if remaining == 0 {
		delete(h.feeds, c.RoomID)
	}
	h.mu.Unlock()

	log := h.log.WithFields(logrus.Fields{"room": c.RoomID, "player": c.PlayerID})
	log.WithField("clients", remaining).Debug("Client unsubscribed")
	if remaining == 0 {
		// outside the lock: the delivery goroutine takes it in broadcast
		f.watch.Close()
		log.Debug("Room feed stopped")
	}
}

func (h *Hub) broadcast(f *feed, v *live.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.feeds[f.roomID] != f {
		return
	}
	f.last = v
	for c := range f.clients {
		c.offer(v)
	}
	h.log.WithFields(logrus.Fields{"room": f.roomID, "clients": len(f.clients)}).Debug("View broadcast")
}

// Rooms returns the number of rooms with connected clients
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds)
}

// Close stops every watch and closes every client's update channel
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	feeds := h.feeds
	h.feeds = make(map[string]*feed)
	h.mu.Unlock()

	h.cancel()
	for _, f := range feeds {
		f.watch.Close()
		for c := range f.clients {
			close(c.updates)
		}
	}
}
