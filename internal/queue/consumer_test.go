package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.Values["type"].(string))
	return h.err
}

func newTestConsumer(t *testing.T, handler MessageHandler) (*Consumer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "portal:jobs", "portal-workers", "worker-1", time.Second, zerolog.Nop(), handler)
	require.NoError(t, c.EnsureGroup(context.Background()))
	require.NoError(t, c.EnsureGroup(context.Background()))
	return c, client
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	pending, err := client.XPending(context.Background(), "portal:jobs", "portal-workers").Result()
	require.NoError(t, err)
	return pending.Count
}

func TestConsumer_ReadAcksHandledMessages(t *testing.T) {
	handler := &recordingHandler{}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "portal:jobs", Values: map[string]any{"type": "session_cleanup"}}).Err())
	require.NoError(t, c.read(ctx))

	assert.Equal(t, []string{"session_cleanup"}, handler.seen)
	assert.Zero(t, pendingCount(t, client))
}

func TestConsumer_FailedMessagesStayPending(t *testing.T) {
	handler := &recordingHandler{err: errors.New("boom")}
	c, client := newTestConsumer(t, handler)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "portal:jobs", Values: map[string]any{"type": "analytics_archive"}}).Err())
	require.NoError(t, c.read(ctx))

	assert.Equal(t, int64(1), pendingCount(t, client))
}

func TestConsumer_ClaimStalledRetriesFailedMessages(t *testing.T) {
	handler := &recordingHandler{err: errors.New("boom")}
	c, client := newTestConsumer(t, handler)
	c.claimInterval = time.Millisecond
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "portal:jobs", Values: map[string]any{"type": "session_cleanup"}}).Err())
	require.NoError(t, c.read(ctx))
	require.Equal(t, int64(1), pendingCount(t, client))

	handler.mu.Lock()
	handler.err = nil
	handler.mu.Unlock()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, c.claimStalled(ctx))
	assert.Equal(t, []string{"session_cleanup", "session_cleanup"}, handler.seen)
	assert.Zero(t, pendingCount(t, client))
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	c, _ := newTestConsumer(t, &recordingHandler{})
	c.block = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
