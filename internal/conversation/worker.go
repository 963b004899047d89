package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dmakarovsky/practice-ai-assistant/internal/observability/metrics"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	maxWaitSeconds     = 20
	maxBatchSize       = 10
)

// Worker consumes conversation jobs from the queue, invokes the processor
// and delivers the reply. Failures stay contained within one job: the user
// gets the fixed apology and the worker moves on.
type Worker struct {
	processor Service
	queue     queueClient
	messenger ReplyMessenger
	metrics   *metrics.WebhookMetrics
	logger    *logging.Logger
	events    *EventLogger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	metrics          *metrics.WebhookMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxBatchSize {
			size = maxBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithWorkerMetrics wires outbound delivery metrics.
func WithWorkerMetrics(m *metrics.WebhookMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer around the provided processor.
func NewWorker(processor Service, queue queueClient, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		messenger: messenger,
		metrics:   cfg.metrics,
		logger:    logger,
		events:    NewEventLogger(logger),
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode conversation job", "error", err)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if payload.Kind != jobTypeMessage {
		w.logger.Warn("skipping unknown job kind", "kind", payload.Kind, "job_id", payload.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.logger.Debug("worker processing job", "job_id", payload.ID, "identity", payload.Message.Identity)

	// A panicking processor or messenger takes down only this job, not the
	// worker goroutine. The user still gets the apology.
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while processing conversation job",
				"panic", r, "job_id", payload.ID, "identity", payload.Message.Identity)
			w.deleteMessage(msg.ReceiptHandle)
			// The messenger itself may be the panic source.
			defer func() { _ = recover() }()
			w.send(ctx, payload.Message.Identity, apologyReply)
		}
	}()

	resp, err := w.processor.ProcessMessage(ctx, payload.Message)
	if err != nil {
		// The user still gets a reply; the failure never propagates back
		// to the transport as an error status.
		w.events.ErrorOccurred(ctx, payload.Message.Identity, "process_message", err)
		w.send(ctx, payload.Message.Identity, apologyReply)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.send(ctx, resp.Identity, resp.Reply)
	w.deleteMessage(msg.ReceiptHandle)
}

// send performs a best-effort delivery. Failures are logged, not retried,
// and do not affect session state.
func (w *Worker) send(ctx context.Context, identity, body string) {
	if w.messenger == nil || body == "" {
		return
	}
	if err := w.messenger.SendReply(ctx, OutboundReply{Identity: identity, Body: body}); err != nil {
		w.logger.Error("failed to deliver reply", "error", err, "identity", identity)
		w.metrics.ObserveOutbound("failed")
		return
	}
	w.events.ReplySent(ctx, identity, len(body))
	w.metrics.ObserveOutbound("sent")
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
