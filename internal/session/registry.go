// Package session keeps the process-wide view of sign-in state. Every
// instance subscribes to one redis channel; sign-outs published by any
// instance revoke the token everywhere.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"experienceboard/internal/platform/logger"
)

type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

const revokedKeyPrefix = "auth:revoked:"

type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
	At        time.Time `json:"at"`
}

// Registry must be started before use and closed on shutdown. Revoked reads
// a local snapshot and never touches redis.
type Registry struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
	now     func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time

	pubsub *redis.PubSub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(client *redis.Client, channel string, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		client:  client,
		channel: channel,
		log:     log.With("component", "session"),
		now:     time.Now,
		revoked: map[string]time.Time{},
	}
}

// Start loads revocations still in force and subscribes to the event channel.
func (r *Registry) Start(ctx context.Context) error {
	if r.cancel != nil {
		return nil
	}

	if err := r.loadRevoked(ctx); err != nil {
		return err
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s failed: %w", r.channel, err)
	}
	r.pubsub = pubsub

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	messages := pubsub.Channel()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.log.Warn("decode auth event failed", "error", err)
					continue
				}
				r.apply(ev)
			}
		}
	}()
	return nil
}

func (r *Registry) loadRevoked(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, revokedKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("read revocation ttl failed: %w", err)
		}
		if ttl <= 0 {
			continue
		}
		r.apply(Event{
			Type:      SignedOut,
			TokenID:   strings.TrimPrefix(key, revokedKeyPrefix),
			ExpiresAt: r.now().Add(ttl),
		})
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan revocations failed: %w", err)
	}
	return nil
}

// SignedIn announces a new session.
func (r *Registry) SignedIn(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	return r.publish(ctx, Event{Type: SignedIn, UserID: userID, TokenID: tokenID, ExpiresAt: expiresAt, At: r.now()})
}

// Revoke signs the token out on every instance until it would have expired.
func (r *Registry) Revoke(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	ev := Event{Type: SignedOut, UserID: userID, TokenID: tokenID, ExpiresAt: expiresAt, At: r.now()}
	r.apply(ev)

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+tokenID, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revocation failed: %w", err)
	}
	return r.publish(ctx, ev)
}

func (r *Registry) Revoked(tokenID string) bool {
	r.mu.RLock()
	expiresAt, ok := r.revoked[tokenID]
	r.mu.RUnlock()
	return ok && r.now().Before(expiresAt)
}

// RevokedCount is the number of revocations in the local snapshot.
func (r *Registry) RevokedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}

func (r *Registry) apply(ev Event) {
	if ev.Type != SignedOut || ev.TokenID == "" {
		return
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, exp := range r.revoked {
		if !now.Before(exp) {
			delete(r.revoked, id)
		}
	}
	if now.Before(ev.ExpiresAt) {
		r.revoked[ev.TokenID] = ev.ExpiresAt
	}
}

func (r *Registry) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal auth event failed: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish auth event failed: %w", err)
	}
	return nil
}

// Close unsubscribes and waits for the listener to exit.
func (r *Registry) Close() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	var err error
	if r.pubsub != nil {
		err = r.pubsub.Close()
	}
	r.wg.Wait()
	r.cancel = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
