package consent

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// CurrentVersion is bumped whenever the record layout changes.
const CurrentVersion = 1

var ErrNoRecord = errors.New("no consent record")

type Record struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
}

func (r Record) valid() bool {
	if r.Version < 1 || r.Version > CurrentVersion {
		return false
	}
	return r.Status == StatusAccepted || r.Status == StatusRejected
}

// Store persists a single consent record under a fixed key.
type Store interface {
	Load() (Record, error)
	Save(Record) error
}

// TrackerConfig is handed to the tracking client on Init. The client, not
// the gate, decides what do-not-track and development mode mean.
type TrackerConfig struct {
	RespectDoNotTrack bool
	DoNotTrack        bool
	OptOutByDefault   bool
	// ConsentedAt is when the accepted record was written. A client-side
	// opt-out recorded after it wins over the record.
	ConsentedAt time.Time
}

type Tracker interface {
	Init(cfg TrackerConfig) error
	OptOutCapturing() error
	Capture(name string, props map[string]any) error
}
