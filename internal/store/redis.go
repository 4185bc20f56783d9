package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisChannelPrefix    = "impostor:changes:"
	redisSubscribeTimeout = 5 * time.Second
)

// RedisNotifier fans changes out through redis pub/sub so that several
// server processes sharing one postgres database see each other's writes.
type RedisNotifier struct {
	client *redis.Client
	log    *logrus.Entry

	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

type redisSub struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
	owner  *RedisNotifier
}

// NewRedisNotifier wraps a connected client
func NewRedisNotifier(client *redis.Client, log *logrus.Entry) *RedisNotifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisNotifier{
		client: client,
		log:    log.WithField("notifier", "redis"),
		subs:   make(map[*redisSub]struct{}),
	}
}

func redisChannel(table Table) string {
	return redisChannelPrefix + string(table)
}

// Publish sends the change on the table's channel
func (n *RedisNotifier) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := n.client.Publish(ctx, redisChannel(c.Table), payload).Err(); err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	return nil
}

// Subscribe listens on the table's channel and calls fn for changes that pass
// filter. It returns once redis has confirmed the subscription.
func (n *RedisNotifier) Subscribe(table Table, filter Filter, fn func(Change)) (Subscription, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrClosed
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), redisSubscribeTimeout)
	defer cancel()

	pubsub := n.client.Subscribe(ctx, redisChannel(table))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", table, err)
	}

	s := &redisSub{pubsub: pubsub, done: make(chan struct{}), owner: n}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		pubsub.Close()
		return nil, ErrClosed
	}
	n.subs[s] = struct{}{}
	n.mu.Unlock()

	go func() {
		defer close(s.done)
		for msg := range pubsub.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				n.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed change")
				continue
			}
			if filter.Matches(c) {
				fn(c)
			}
		}
	}()
	return s, nil
}

// Close ends every subscription. The client is left open for its owner.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	n.closed = true
	subs := make([]*redisSub, 0, len(n.subs))
	for s := range n.subs {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	return nil
}

// Unsubscribe closes the pub/sub connection and waits for the delivery loop
func (s *redisSub) Unsubscribe() {
	s.once.Do(func() {
		s.owner.mu.Lock()
		delete(s.owner.subs, s)
		s.owner.mu.Unlock()

		s.pubsub.Close()
		<-s.done
	})
}
