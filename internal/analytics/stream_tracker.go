// Package analytics ships captured visitor events to a redis stream that the
// worker later archives to object storage.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bnka/portal/internal/consent"
)

const DefaultStream = "analytics:events"

func OptOutKey(distinctID string) string {
	return "analytics:optout:" + distinctID
}

// StreamTracker is a per-visitor client. It is bound to the context of the
// request that created it.
type StreamTracker struct {
	ctx        context.Context
	client     redis.Cmdable
	stream     string
	distinctID string
	log        zerolog.Logger
	now        func() time.Time

	mu          sync.Mutex
	initialized bool
	optedOut    bool
}

var _ consent.Tracker = (*StreamTracker)(nil)

func NewStreamTracker(ctx context.Context, client redis.Cmdable, stream, distinctID string, log zerolog.Logger) *StreamTracker {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamTracker{
		ctx:        ctx,
		client:     client,
		stream:     stream,
		distinctID: distinctID,
		log:        log.With().Str("distinct_id", distinctID).Logger(),
		now:        time.Now,
	}
}

func (t *StreamTracker) Init(cfg consent.TrackerConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return nil
	}
	t.initialized = true

	if (cfg.RespectDoNotTrack && cfg.DoNotTrack) || cfg.OptOutByDefault {
		t.optedOut = true
		t.log.Debug().Msg("tracker initialised opted out")
		return nil
	}

	optedOutAt, found, err := t.persistedOptOut()
	if err != nil {
		t.initialized = false
		return err
	}
	if found && !optedOutAt.Before(cfg.ConsentedAt) {
		t.optedOut = true
		t.log.Debug().Time("opted_out_at", optedOutAt).Msg("persisted opt-out is newer than consent")
		return nil
	}

	if found {
		if err := t.client.Del(t.ctx, OptOutKey(t.distinctID)).Err(); err != nil {
			t.initialized = false
			return fmt.Errorf("clear opt-out: %w", err)
		}
	}
	t.optedOut = false
	return nil
}

// persistedOptOut reads the saved opt-out time. An unparseable marker reads
// as the zero time, so any consent supersedes it.
func (t *StreamTracker) persistedOptOut() (time.Time, bool, error) {
	raw, err := t.client.Get(t.ctx, OptOutKey(t.distinctID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read opt-out: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t.log.Warn().Str("value", raw).Msg("unreadable opt-out marker")
		return time.Time{}, true, nil
	}
	return at, true, nil
}

func (t *StreamTracker) OptOutCapturing() error {
	t.mu.Lock()
	t.optedOut = true
	t.mu.Unlock()

	if err := t.client.Set(t.ctx, OptOutKey(t.distinctID), t.now().UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("persist opt-out: %w", err)
	}
	return nil
}

// Capture drops the event when the client was never initialised or has opted
// out.
func (t *StreamTracker) Capture(name string, props map[string]any) error {
	t.mu.Lock()
	active := t.initialized && !t.optedOut
	t.mu.Unlock()
	if !active {
		return nil
	}

	if props == nil {
		props = map[string]any{}
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	return t.client.XAdd(t.ctx, &redis.XAddArgs{
		Stream: t.stream,
		Values: map[string]any{
			"distinct_id": t.distinctID,
			"event":       name,
			"properties":  string(encoded),
			"timestamp":   t.now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}
