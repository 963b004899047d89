package conversation

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmakarovsky/practice-ai-assistant/internal/analytics"
	"github.com/dmakarovsky/practice-ai-assistant/internal/observability/metrics"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

const (
	defaultCompletionTimeout = 30 * time.Second
	analyticsTimeout         = 5 * time.Second

	// namePlaceholder substitutes an absent display name in analytics events.
	namePlaceholder = "Без имени"
)

// LLMService is the per-turn orchestrator: it records the inbound message,
// assembles the conditioning context, invokes the generative backend, records
// and sanitizes the reply, and advances the conversation stage.
type LLMService struct {
	llm       LLMClient
	store     *Store
	policy    StagePolicy
	sanitizer *Sanitizer
	model     string
	timeout   time.Duration
	sink      analytics.Sink
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger
	events    *EventLogger
	tracer    trace.Tracer
}

// LLMServiceOption customizes the service.
type LLMServiceOption func(*LLMService)

// WithCompletionTimeout bounds each generative-backend call. A hung backend
// stalls only the affected identity's turn, and only up to this limit.
func WithCompletionTimeout(d time.Duration) LLMServiceOption {
	return func(s *LLMService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAnalytics attaches a fire-and-forget analytics sink.
func WithAnalytics(sink analytics.Sink) LLMServiceOption {
	return func(s *LLMService) {
		s.sink = sink
	}
}

// WithMetrics attaches Prometheus conversation metrics.
func WithMetrics(m *metrics.ConversationMetrics) LLMServiceOption {
	return func(s *LLMService) {
		s.metrics = m
	}
}

// NewLLMService wires the orchestrator. store, llm, policy and sanitizer are
// required; the rest defaults sanely.
func NewLLMService(llm LLMClient, store *Store, policy StagePolicy, sanitizer *Sanitizer, model string, logger *logging.Logger, opts ...LLMServiceOption) *LLMService {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if policy == nil {
		policy = TurnStagePolicy{}
	}
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &LLMService{
		llm:       llm,
		store:     store,
		policy:    policy,
		sanitizer: sanitizer,
		model:     model,
		timeout:   defaultCompletionTimeout,
		logger:    logger,
		events:    NewEventLogger(logger),
		tracer:    otel.Tracer("assistant.internal.conversation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessMessage handles one turn. Backend failures and empty generations do
// not fail the turn: the fixed fallback reply is recorded and returned so the
// history always pairs the inbound message with an assistant message. An
// error is returned only for requests the service cannot attribute to a
// session.
func (s *LLMService) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if strings.TrimSpace(req.Identity) == "" {
		return nil, ErrIdentityRequired
	}

	ctx, span := s.tracer.Start(ctx, "conversation.process_message")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.identity", req.Identity))

	sess := s.store.GetOrCreate(req.Identity)
	sess.LockTurn()
	defer sess.UnlockTurn()

	preStage := sess.Stage()
	if preStage == StageInitial && sess.Len() == 0 {
		s.events.ConversationStarted(ctx, req.Identity)
	}
	s.events.MessageReceived(ctx, req.Identity, preStage, req.Text)

	if !sess.Paid() && containsPaymentCue(req.Text) {
		sess.MarkPaid()
		s.events.PaymentConfirmed(ctx, req.Identity, preStage)
	}

	// Record before calling so the triggering message is part of its own
	// context window.
	sess.Append(ChatRoleUser, req.Text)

	directive := s.policy.Directive(sess)
	llmReq := LLMRequest{
		Model:    s.model,
		System:   []string{baseInstructions, directive},
		Messages: sess.History(),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.llm.Complete(callCtx, llmReq)
	elapsed := time.Since(started)

	reply := strings.TrimSpace(resp.Text)
	outcome := "ok"
	switch {
	case err != nil:
		span.RecordError(err)
		s.events.ErrorOccurred(ctx, req.Identity, "llm_complete", err)
		reply = fallbackReply
		outcome = "fallback"
		s.events.FallbackSubstituted(ctx, req.Identity, preStage, "backend_error")
	case reply == "":
		reply = fallbackReply
		outcome = "fallback"
		s.events.FallbackSubstituted(ctx, req.Identity, preStage, "empty_text")
	default:
		s.events.LLMResponseGenerated(ctx, req.Identity, preStage, elapsed.Milliseconds(), int(resp.Usage.TotalTokens))
	}

	sess.Append(ChatRoleAssistant, reply)
	s.policy.Advance(sess, reply)

	result := s.sanitizer.Sanitize(reply)
	if len(result.Applied) > 0 {
		s.events.SanitizerTriggered(ctx, req.Identity, sess.Stage(), result.Applied)
	}

	s.metrics.ObserveTurn(outcome, elapsed.Seconds())
	for _, rule := range result.Applied {
		s.metrics.ObserveSanitizerHit(rule)
	}

	s.recordAnalytics(req, preStage)

	return &Response{
		Identity:  req.Identity,
		Reply:     result.Text,
		Stage:     sess.Stage(),
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetHistory returns the retained transcript for identity, oldest first. An
// unknown identity yields an empty history without creating a session.
func (s *LLMService) GetHistory(_ context.Context, identity string) ([]ChatMessage, error) {
	sess, ok := s.store.Lookup(identity)
	if !ok {
		return []ChatMessage{}, nil
	}
	return sess.History(), nil
}

// recordAnalytics dispatches the turn event without blocking the turn. Sink
// failures are logged at debug level and otherwise ignored.
func (s *LLMService) recordAnalytics(req MessageRequest, stage Stage) {
	if s.sink == nil {
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = namePlaceholder
	}
	evt := analytics.Event{
		Identity:    req.Identity,
		DisplayName: name,
		Text:        req.Text,
		Stage:       string(stage),
		Timestamp:   time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyticsTimeout)
		defer cancel()
		if err := s.sink.Record(ctx, evt); err != nil {
			s.logger.Debug("analytics sink failed", "identity", evt.Identity, "error", err)
		}
	}()
}
