package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const jobTypeMessage jobType = "message"

type queuePayload struct {
	ID      string         `json:"id"`
	Kind    jobType        `json:"kind"`
	Message MessageRequest `json:"message"`
}

func encodePayload(kind jobType, jobID string, message MessageRequest) (queuePayload, string, error) {
	payload := queuePayload{
		ID:      jobID,
		Kind:    kind,
		Message: message,
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
