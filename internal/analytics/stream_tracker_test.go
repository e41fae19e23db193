package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bnka/portal/internal/consent"
)

func newTestTracker(t *testing.T) (*StreamTracker, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStreamTracker(context.Background(), client, "", "visitor-1", zerolog.Nop()), client, mr
}

func streamLen(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	n, err := client.XLen(context.Background(), DefaultStream).Result()
	require.NoError(t, err)
	return n
}

func TestStreamTracker_CaptureBeforeInitIsDropped(t *testing.T) {
	tracker, client, _ := newTestTracker(t)

	require.NoError(t, tracker.Capture("page_view", nil))
	assert.Zero(t, streamLen(t, client))
}

func TestStreamTracker_Capture(t *testing.T) {
	tracker, client, _ := newTestTracker(t)
	require.NoError(t, tracker.Init(consent.TrackerConfig{}))

	require.NoError(t, tracker.Capture("apply_clicked", map[string]any{"amount": 5000}))

	msgs, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "visitor-1", msgs[0].Values["distinct_id"])
	assert.Equal(t, "apply_clicked", msgs[0].Values["event"])
	assert.JSONEq(t, `{"amount":5000}`, msgs[0].Values["properties"].(string))
	assert.NotEmpty(t, msgs[0].Values["timestamp"])
}

func TestStreamTracker_OptOut(t *testing.T) {
	tracker, client, mr := newTestTracker(t)
	require.NoError(t, tracker.Init(consent.TrackerConfig{}))
	require.NoError(t, tracker.OptOutCapturing())

	require.NoError(t, tracker.Capture("x", nil))
	assert.Zero(t, streamLen(t, client))

	raw, err := mr.Get(OptOutKey("visitor-1"))
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339Nano, raw)
	require.NoError(t, err)
}

func TestStreamTracker_InitClearsOlderOptOut(t *testing.T) {
	tracker, client, mr := newTestTracker(t)
	require.NoError(t, mr.Set(OptOutKey("visitor-1"), time.Now().Add(-time.Hour).UTC().Format(time.RFC3339Nano)))

	require.NoError(t, tracker.Init(consent.TrackerConfig{ConsentedAt: time.Now()}))
	assert.False(t, mr.Exists(OptOutKey("visitor-1")))

	require.NoError(t, tracker.Capture("x", nil))
	assert.Equal(t, int64(1), streamLen(t, client))
}

func TestStreamTracker_OptOutOutlivesOlderConsent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	consentedAt := time.Now().Add(-time.Minute)

	first := NewStreamTracker(ctx, client, "", "visitor-1", zerolog.Nop())
	require.NoError(t, first.Init(consent.TrackerConfig{ConsentedAt: consentedAt}))
	require.NoError(t, first.OptOutCapturing())

	second := NewStreamTracker(ctx, client, "", "visitor-1", zerolog.Nop())
	require.NoError(t, second.Init(consent.TrackerConfig{ConsentedAt: consentedAt}))
	require.NoError(t, second.Capture("x", nil))

	assert.True(t, mr.Exists(OptOutKey("visitor-1")))
	assert.Zero(t, streamLen(t, client))

	third := NewStreamTracker(ctx, client, "", "visitor-1", zerolog.Nop())
	require.NoError(t, third.Init(consent.TrackerConfig{ConsentedAt: time.Now().Add(time.Second)}))
	require.NoError(t, third.Capture("x", nil))

	assert.False(t, mr.Exists(OptOutKey("visitor-1")))
	assert.Equal(t, int64(1), streamLen(t, client))
}

func TestStreamTracker_ReplayedConsentStaysOptedOut(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	accepted := consent.NewMemoryStore()
	gate := consent.NewGate(accepted, NewStreamTracker(ctx, client, "", "visitor-1", zerolog.Nop()), consent.Options{})
	gate.Load()
	_, err := gate.Accept()
	require.NoError(t, err)
	staleRecord, err := accepted.Load()
	require.NoError(t, err)

	_, err = gate.Reject()
	require.NoError(t, err)

	replayed := consent.NewMemoryStore()
	require.NoError(t, replayed.Save(staleRecord))
	replay := consent.NewGate(replayed, NewStreamTracker(ctx, client, "", "visitor-1", zerolog.Nop()), consent.Options{})
	require.Equal(t, consent.StatusAccepted, replay.Load())
	replay.Track("x", nil)

	assert.Zero(t, streamLen(t, client))
}

func TestStreamTracker_InitIsIdempotent(t *testing.T) {
	tracker, _, mr := newTestTracker(t)
	require.NoError(t, tracker.Init(consent.TrackerConfig{}))
	require.NoError(t, mr.Set(OptOutKey("visitor-1"), "later"))

	require.NoError(t, tracker.Init(consent.TrackerConfig{}))
	assert.True(t, mr.Exists(OptOutKey("visitor-1")))
}

func TestStreamTracker_InitHonoursConfig(t *testing.T) {
	cases := map[string]consent.TrackerConfig{
		"do not track":       {RespectDoNotTrack: true, DoNotTrack: true},
		"opt out by default": {OptOutByDefault: true},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			tracker, client, _ := newTestTracker(t)
			require.NoError(t, tracker.Init(cfg))
			require.NoError(t, tracker.Capture("x", nil))
			assert.Zero(t, streamLen(t, client))
		})
	}

	tracker, client, _ := newTestTracker(t)
	require.NoError(t, tracker.Init(consent.TrackerConfig{DoNotTrack: true}))
	require.NoError(t, tracker.Capture("x", nil))
	assert.Equal(t, int64(1), streamLen(t, client))
}

func TestStreamTracker_GatedByConsent(t *testing.T) {
	tracker, client, _ := newTestTracker(t)
	gate := consent.NewGate(consent.NewMemoryStore(), tracker, consent.Options{})
	gate.Load()

	gate.Track("before", nil)
	_, err := gate.Accept()
	require.NoError(t, err)
	gate.Track("during", nil)
	_, err = gate.Reject()
	require.NoError(t, err)
	gate.Track("after", nil)

	msgs, err := client.XRange(context.Background(), DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "during", msgs[0].Values["event"])
}
