package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrIdentityRequired is returned when a turn arrives without a chat key.
var ErrIdentityRequired = errors.New("conversation: identity is required")

// Service describes how the conversation engine should behave.
type Service interface {
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	GetHistory(ctx context.Context, identity string) ([]ChatMessage, error)
}

// MessageRequest represents a single inbound turn.
type MessageRequest struct {
	// Identity is the stable chat key supplied by the transport. Sessions
	// are keyed by it and it is never generated internally.
	Identity string
	// DisplayName is the counterparty's optional display name, used only
	// for the analytics event.
	DisplayName string
	// Text is the inbound message body.
	Text string
}

// Response is the DTO returned to the transport layer.
type Response struct {
	Identity  string
	Reply     string
	Stage     Stage
	Timestamp time.Time
}
