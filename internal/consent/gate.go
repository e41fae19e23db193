package consent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Event int

const (
	EventAccept Event = iota + 1
	EventReject
)

func (e Event) String() string {
	switch e {
	case EventAccept:
		return "accept"
	case EventReject:
		return "reject"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var ErrUnknownEvent = errors.New("unknown consent event")

type Options struct {
	Tracker     TrackerConfig
	PromptDelay time.Duration
	// OnPrompt fires once, PromptDelay after a pending Load, for long-lived
	// gates. Per-request callers leave it nil and hand PromptAfter to the
	// client instead.
	OnPrompt func()
	Now      func() time.Time
	Log      zerolog.Logger
}

type Gate struct {
	store   Store
	tracker Tracker
	opts    Options

	mu          sync.Mutex
	state       Status
	initialized bool
	listeners   map[int]func(Status)
	nextID      int
	prompt      *time.Timer
}

func NewGate(store Store, tracker Tracker, opts Options) *Gate {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gate{
		store:     store,
		tracker:   tracker,
		opts:      opts,
		state:     StatusPending,
		listeners: map[int]func(Status){},
	}
}

// Load reads the persisted record once and brings the tracker in line with it.
func (g *Gate) Load() Status {
	record, err := g.store.Load()
	if err != nil && !errors.Is(err, ErrNoRecord) {
		g.opts.Log.Warn().Err(err).Msg("consent record unreadable, treating as pending")
	}
	if err != nil || !record.valid() {
		record = Record{Status: StatusPending}
	}

	g.mu.Lock()
	switch record.Status {
	case StatusAccepted:
		g.activateLocked(record.Timestamp)
	case StatusRejected:
		g.deactivateLocked()
	default:
		g.schedulePromptLocked()
	}
	notify := g.setStateLocked(record.Status)
	g.mu.Unlock()

	notify()
	return record.Status
}

func (g *Gate) Accept() (Status, error) { return g.Transition(EventAccept) }
func (g *Gate) Reject() (Status, error) { return g.Transition(EventReject) }

// Transition persists the new choice before touching the tracker. A failed
// write on accept leaves the state unchanged; a failed write on reject still
// stops tracking for this gate.
func (g *Gate) Transition(event Event) (Status, error) {
	var next Status
	switch event {
	case EventAccept:
		next = StatusAccepted
	case EventReject:
		next = StatusRejected
	default:
		return g.CurrentState(), fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	g.mu.Lock()
	g.stopPromptLocked()

	record := Record{Status: next, Timestamp: g.opts.Now().UTC(), Version: CurrentVersion}
	saveErr := g.store.Save(record)
	if saveErr != nil && next == StatusAccepted {
		state := g.state
		g.mu.Unlock()
		return state, fmt.Errorf("persist consent: %w", saveErr)
	}

	if next == StatusAccepted {
		g.activateLocked(record.Timestamp)
	} else if g.state != StatusRejected {
		g.deactivateLocked()
	}
	notify := g.setStateLocked(next)
	g.mu.Unlock()

	notify()
	if saveErr != nil {
		return next, fmt.Errorf("persist consent: %w", saveErr)
	}
	return next, nil
}

func (g *Gate) CurrentState() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// PromptAfter is how long the UI should wait before asking, or zero when the
// visitor has already chosen.
func (g *Gate) PromptAfter() time.Duration {
	if g.CurrentState() != StatusPending {
		return 0
	}
	return g.opts.PromptDelay
}

// Track forwards the event only while consent is accepted. Anything else is
// dropped without error and without buffering.
func (g *Gate) Track(name string, props map[string]any) {
	g.mu.Lock()
	active := g.state == StatusAccepted && g.initialized
	g.mu.Unlock()
	if !active || g.tracker == nil {
		return
	}

	if err := g.tracker.Capture(name, props); err != nil {
		g.opts.Log.Warn().Err(err).Str("event", name).Msg("capture failed")
	}
}

func (g *Gate) Subscribe(fn func(Status)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopPromptLocked()
}

func (g *Gate) activateLocked(consentedAt time.Time) {
	if g.initialized || g.tracker == nil {
		return
	}
	cfg := g.opts.Tracker
	cfg.ConsentedAt = consentedAt
	if err := g.tracker.Init(cfg); err != nil {
		g.opts.Log.Warn().Err(err).Msg("tracker init failed")
		return
	}
	g.initialized = true
}

func (g *Gate) deactivateLocked() {
	g.initialized = false
	if g.tracker == nil {
		return
	}
	if err := g.tracker.OptOutCapturing(); err != nil {
		g.opts.Log.Warn().Err(err).Msg("tracker opt-out failed")
	}
}

func (g *Gate) schedulePromptLocked() {
	if g.opts.PromptDelay <= 0 || g.opts.OnPrompt == nil || g.prompt != nil {
		return
	}
	g.prompt = time.AfterFunc(g.opts.PromptDelay, func() {
		if g.CurrentState() == StatusPending {
			g.opts.OnPrompt()
		}
	})
}

func (g *Gate) stopPromptLocked() {
	if g.prompt != nil {
		g.prompt.Stop()
		g.prompt = nil
	}
}

// setStateLocked returns a func that delivers the change to subscribers; it
// must be called after the lock is released.
func (g *Gate) setStateLocked(next Status) func() {
	if g.state == next {
		return func() {}
	}
	g.state = next
	listeners := make([]func(Status), 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	return func() {
		for _, fn := range listeners {
			fn(next)
		}
	}
}
