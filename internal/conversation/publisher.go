package conversation

import (
	"context"
	"fmt"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

// Publisher enqueues conversation jobs for asynchronous processing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueMessage publishes a ProcessMessage job.
func (p *Publisher) EnqueueMessage(ctx context.Context, jobID string, req MessageRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(jobTypeMessage, jobID, req)
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued", "job_id", payload.ID, "identity", req.Identity)
	return nil
}
