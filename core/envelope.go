package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope is the queue message that asks a worker to process one job.
// It is never persisted; the acknowledgment token and redelivery count
// belong to the queue message carrying it.
type Envelope struct {
	TaskID     string    `json:"task_id"`
	BlobBucket string    `json:"blob_bucket"`
	BlobKey    string    `json:"blob_key"`
	Filename   string    `json:"filename"`
	CreatedAt  time.Time `json:"created_at"`
	Prompt     string    `json:"prompt"`
}

// EnvelopeFor builds the envelope announcing job.
func EnvelopeFor(job *Job) Envelope {
	return Envelope{
		TaskID:     job.ID,
		BlobBucket: job.BlobBucket,
		BlobKey:    job.BlobKey,
		Filename:   job.Filename,
		CreatedAt:  job.CreatedAt,
		Prompt:     job.Prompt,
	}
}

// Encode returns the JSON wire form of the envelope.
func (e Envelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Validate checks the fields a worker cannot do without.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.TaskID) == "" {
		return fmt.Errorf("%w: task_id is required", ErrInvalidEnvelope)
	}
	if err := ValidateJobID(e.TaskID); err != nil {
		return fmt.Errorf("%w: task_id: %w", ErrInvalidEnvelope, err)
	}
	if strings.TrimSpace(e.BlobKey) == "" {
		return fmt.Errorf("%w: blob_key is required", ErrInvalidEnvelope)
	}
	return nil
}

// DecodeEnvelope parses and validates a wire envelope.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
