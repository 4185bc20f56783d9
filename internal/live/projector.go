// Package live keeps consumers up to date with a room's state by re-reading
// it from the store whenever a change notification arrives.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

const defaultRetryDelay = 500 * time.Millisecond

// View is everything a client renders for one room. Round is the room's
// highest-numbered round, nil before the first game starts.
type View struct {
	Room    *models.Room     `json:"room"`
	Players []*models.Player `json:"players"`
	Round   *models.Round    `json:"round,omitempty"`
	Clues   []*models.Clue   `json:"clues"`
	Votes   []*models.Vote   `json:"votes"`
}

// Projector derives views from the store
type Projector struct {
	store store.Store
	log   *logrus.Entry
	retry time.Duration
}

// NewProjector creates a projector over s
func NewProjector(s store.Store, log *logrus.Entry) *Projector {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Projector{store: s, log: log.WithField("component", "live"), retry: defaultRetryDelay}
}

// Load reads the room aggregate
func (p *Projector) Load(ctx context.Context, roomID string) (*View, error) {
	view := &View{Clues: []*models.Clue{}, Votes: []*models.Vote{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		room, err := p.store.GetRoom(gctx, roomID)
		if err != nil {
			return fmt.Errorf("loading room: %w", err)
		}
		view.Room = room
		return nil
	})
	g.Go(func() error {
		players, err := p.store.ListPlayers(gctx, roomID)
		if err != nil {
			return fmt.Errorf("loading players: %w", err)
		}
		view.Players = players
		return nil
	})
	g.Go(func() error {
		round, err := p.store.LatestRound(gctx, roomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading round: %w", err)
		}
		view.Round = round
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if view.Round == nil {
		return view, nil
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		clues, err := p.store.ListClues(gctx, view.Round.ID)
		if err != nil {
			return fmt.Errorf("loading clues: %w", err)
		}
		view.Clues = clues
		return nil
	})
	g.Go(func() error {
		votes, err := p.store.ListVotes(gctx, view.Round.ID)
		if err != nil {
			return fmt.Errorf("loading votes: %w", err)
		}
		view.Votes = votes
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// Watch delivers a fresh view to publish after every change to the room.
// Bursts of notifications coalesce into one re-read, and a notification
// that arrives during a re-read always causes another one.
type Watch struct {
	subs   []store.Subscription
	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Watch subscribes to every table for roomID and publishes the initial view
// as soon as it is loaded. publish runs on a single goroutine.
func (p *Projector) Watch(ctx context.Context, roomID string, publish func(*View)) (*Watch, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watch{
		dirty:  make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log := p.log.WithField("room", roomID)

	for _, table := range store.Tables {
		sub, err := p.store.Subscribe(table, store.Filter{RoomID: roomID}, func(c store.Change) {
			log.WithFields(logrus.Fields{"table": c.Table, "kind": c.Kind, "id": c.ID}).Debug("Change received")
			w.mark()
		})
		if err != nil {
			for _, s := range w.subs {
				s.Unsubscribe()
			}
			cancel()
			return nil, fmt.Errorf("subscribing to %s: %w", table, err)
		}
		w.subs = append(w.subs, sub)
	}

	w.mark()
	go p.run(ctx, w, roomID, publish, log)
	return w, nil
}

func (p *Projector) run(ctx context.Context, w *Watch, roomID string, publish func(*View), log *logrus.Entry) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.dirty:
		}

		view, err := p.Load(ctx, roomID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Reloading room failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retry):
				w.mark()
			}
			continue
		}
		publish(view)
	}
}

func (w *Watch) mark() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

// Close tears down every subscription and waits for the delivery loop. It
// must not be called from inside publish.
func (w *Watch) Close() {
	w.once.Do(func() {
		for _, s := range w.subs {
			s.Unsubscribe()
		}
		w.cancel()
		<-w.done
	})
}
