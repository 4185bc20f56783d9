package store

import (
	"context"
	"sync"
)

// MemoryNotifier delivers changes to subscribers in the same process.
// Each subscription owns an unbounded queue so a slow callback never blocks
// a writer and never loses a notification.
type MemoryNotifier struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	table  Table
	filter Filter
	fn     func(Change)

	mu    sync.Mutex
	queue []Change
	wake  chan struct{}
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	owner *MemoryNotifier
}

// NewMemoryNotifier creates an in-process notifier
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[*memorySub]struct{})}
}

// Publish queues the change for every matching subscription
func (n *MemoryNotifier) Publish(_ context.Context, c Change) error {
	n.mu.RLock()
	targets := make([]*memorySub, 0, len(n.subs))
	for s := range n.subs {
		if s.table == c.Table && s.filter.Matches(c) {
			targets = append(targets, s)
		}
	}
	n.mu.RUnlock()

	for _, s := range targets {
		s.push(c)
	}
	return nil
}

// Subscribe registers fn for changes on table that pass filter
func (n *MemoryNotifier) Subscribe(table Table, filter Filter, fn func(Change)) (Subscription, error) {
	s := &memorySub{
		table:  table,
		filter: filter,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		owner:  n,
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrClosed
	}
	n.subs[s] = struct{}{}
	n.mu.Unlock()

	go s.run()
	return s, nil
}

// Close stops every subscription
func (n *MemoryNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	subs := make([]*memorySub, 0, len(n.subs))
	for s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	return nil
}

func (s *memorySub) push(c Change) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySub) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, c := range batch {
			select {
			case <-s.stop:
				return
			default:
			}
			s.fn(c)
		}
	}
}

// Unsubscribe removes the registration and waits for an in-flight callback
// to return. It must not be called from inside the subscription's own callback.
func (s *memorySub) Unsubscribe() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subs, s)
		s.owner.mu.Unlock()

		close(s.stop)
		<-s.done
	})
}
