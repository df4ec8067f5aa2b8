package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Descriptor is the message carried on the queue. It references the video
// record by id and never carries the script itself; the record in the
// database stays the source of truth and the worker re-reads it.
type Descriptor struct {
	VideoID       string    `json:"video_id"`
	OwnerID       string    `json:"owner_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// Validate rejects malformed descriptors at the transport boundary so the
// worker never fails deep inside processing on a half-formed message.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.VideoID) == "" {
		return fmt.Errorf("descriptor: video_id is required")
	}
	if strings.TrimSpace(d.OwnerID) == "" {
		return fmt.Errorf("descriptor: owner_id is required")
	}
	if d.EnqueuedAt.IsZero() {
		return fmt.Errorf("descriptor: enqueued_at is required")
	}
	return nil
}

// Encode serializes the descriptor for the wire.
func (d *Descriptor) Encode() (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("descriptor: marshal failed: %w", err)
	}
	return string(b), nil
}

// DecodeDescriptor parses and validates a wire payload.
func DecodeDescriptor(raw string) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("descriptor: invalid json: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
