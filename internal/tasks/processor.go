package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bnka/portal/internal/jobs"
)

// SessionCleaner removes sessions whose expiry has passed.
type SessionCleaner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Archive stores one batch of analytics events.
type Archive interface {
	PutJSON(ctx context.Context, key string, body []byte) error
}

type Processor struct {
	logger    zerolog.Logger
	sessions  SessionCleaner
	archive   Archive
	events    *redis.Client
	stream    string
	batchSize int64
	now       func() time.Time
}

type TaskPayload struct {
	Type       string `json:"type"`
	EnqueuedAt string `json:"enqueuedAt"`
}

type ProcessorConfig struct {
	AnalyticsStream string
	BatchSize       int64
}

func NewProcessor(logger zerolog.Logger, sessions SessionCleaner, archive Archive, events *redis.Client, cfg ProcessorConfig) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Processor{
		logger:    logger,
		sessions:  sessions,
		archive:   archive,
		events:    events,
		stream:    cfg.AnalyticsStream,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case jobs.TaskSessionCleanup:
		return p.handleSessionCleanup(ctx)
	case jobs.TaskAnalyticsArchive:
		return p.handleAnalyticsArchive(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleSessionCleanup(ctx context.Context) error {
	if p.sessions == nil {
		p.logger.Debug().Msg("session store expires entries natively, skipping cleanup")
		return nil
	}
	removed, err := p.sessions.DeleteExpired(ctx, p.now())
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	p.logger.Info().Int64("removed", removed).Msg("expired sessions removed")
	return nil
}

type archivedEvent struct {
	ID         string          `json:"id"`
	DistinctID string          `json:"distinctId"`
	Event      string          `json:"event"`
	Properties json.RawMessage `json:"properties"`
	Timestamp  string          `json:"timestamp"`
}

// handleAnalyticsArchive drains the analytics stream batch by batch. Entries
// are deleted only after their batch is stored.
func (p *Processor) handleAnalyticsArchive(ctx context.Context) error {
	total := 0
	for {
		msgs, err := p.events.XRangeN(ctx, p.stream, "-", "+", p.batchSize).Result()
		if err != nil {
			return fmt.Errorf("read analytics stream: %w", err)
		}
		if len(msgs) == 0 {
			break
		}

		batch := make([]archivedEvent, 0, len(msgs))
		ids := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			batch = append(batch, toArchivedEvent(msg))
			ids = append(ids, msg.ID)
		}

		body, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("encode batch: %w", err)
		}
		key := fmt.Sprintf("events/%s/%s.json", p.now().UTC().Format("2006/01/02"), msgs[0].ID)
		if err := p.archive.PutJSON(ctx, key, body); err != nil {
			return err
		}
		if err := p.events.XDel(ctx, p.stream, ids...).Err(); err != nil {
			return fmt.Errorf("trim analytics stream: %w", err)
		}

		total += len(msgs)
		if int64(len(msgs)) < p.batchSize {
			break
		}
	}

	p.logger.Info().Int("events", total).Msg("analytics archived")
	return nil
}

func toArchivedEvent(msg redis.XMessage) archivedEvent {
	str := func(key string) string {
		v, _ := msg.Values[key].(string)
		return v
	}
	props := json.RawMessage(str("properties"))
	if !json.Valid(props) {
		props = json.RawMessage("{}")
	}
	return archivedEvent{
		ID:         msg.ID,
		DistinctID: str("distinct_id"),
		Event:      str("event"),
		Properties: props,
		Timestamp:  str("timestamp"),
	}
}
