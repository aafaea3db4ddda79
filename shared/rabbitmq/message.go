package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidJobMessage is returned when a delivery body is not a job message
var ErrInvalidJobMessage = errors.New("invalid job message")

// JobMessage is the queue payload handing a job from the API to the workers
type JobMessage struct {
	JobID string `json:"job_id"`
}

// EncodeJobMessage renders the payload for jobID
func EncodeJobMessage(jobID uuid.UUID) ([]byte, error) {
	return json.Marshal(JobMessage{JobID: jobID.String()})
}

// DecodeJobMessage parses a payload and its job id
func DecodeJobMessage(body []byte) (uuid.UUID, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidJobMessage, err)
	}
	if msg.JobID == "" {
		return uuid.Nil, fmt.Errorf("%w: missing job_id", ErrInvalidJobMessage)
	}
	id, err := uuid.Parse(msg.JobID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: job_id %q: %v", ErrInvalidJobMessage, msg.JobID, err)
	}
	return id, nil
}

// PublishJob enqueues jobID for the workers
func (c *Client) PublishJob(ctx context.Context, jobID uuid.UUID) error {
	body, err := EncodeJobMessage(jobID)
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}
	return c.PublishWithRetry(ctx, body, "application/json")
}
