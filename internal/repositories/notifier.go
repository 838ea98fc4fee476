package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const notifyChannelPrefix = "sync:updates:"

// RedisNotifier fans out submit notifications across server instances with
// Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, sharedEventID, updateID string) error {
	if err := n.client.Publish(ctx, notifyChannel(sharedEventID), updateID).Err(); err != nil {
		return fmt.Errorf("failed to publish sync notification: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(ctx context.Context, sharedEventID string) (<-chan struct{}, func(), error) {
	pubsub := n.client.Subscribe(ctx, notifyChannel(sharedEventID))

	// Wait for the subscription to be confirmed so a publish that lands right
	// after Subscribe returns is not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to sync notifications: %w", err)
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		messages := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return out, cancel, nil
}

func notifyChannel(sharedEventID string) string {
	return notifyChannelPrefix + sharedEventID
}

// LocalNotifier delivers notifications within one process. It backs the
// in-memory store, where there is no other instance to reach.
type LocalNotifier struct {
	mu          sync.Mutex
	subscribers map[string]map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subscribers: make(map[string]map[chan struct{}]struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, sharedEventID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subscribers[sharedEventID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Subscribe(_ context.Context, sharedEventID string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.subscribers[sharedEventID] == nil {
		n.subscribers[sharedEventID] = make(map[chan struct{}]struct{})
	}
	n.subscribers[sharedEventID][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subscribers[sharedEventID], ch)
			if len(n.subscribers[sharedEventID]) == 0 {
				delete(n.subscribers, sharedEventID)
			}
		})
	}
	return ch, cancel, nil
}

// SubscriberCount returns the number of live subscriptions for sharedEventID.
func (n *LocalNotifier) SubscriberCount(sharedEventID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subscribers[sharedEventID])
}
