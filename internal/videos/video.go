package videos

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a render job. Transitions only move
// forward: queued -> processing -> completed|failed. The terminal states
// are absorbing.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Processing log stages. Cada entrada marca la etapa alcanzada, no el
// resultado global del job.
const (
	StageRender    = "render"
	StageUpload    = "upload"
	StageCompleted = "completed"
	StageFailed    = "failed"
	StageWebhook   = "webhook"
)

// Log levels for processing log entries.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Video is the persistent record of one render request.
type Video struct {
	ID                    string     `json:"id"`
	PromptID              string     `json:"prompt_id"`
	OwnerID               string     `json:"owner_id"`
	Status                Status     `json:"status"`
	Quality               string     `json:"quality,omitempty"`
	ResultURL             string     `json:"result_url,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	DurationSecs          float64    `json:"duration_secs,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`
}

// ProcessingLog is one append-only audit entry for a video. Entries are
// never mutated or deleted; ordering is append order.
type ProcessingLog struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a fresh video id.
func NewID() string {
	return "vid_" + uuid.NewString()
}
