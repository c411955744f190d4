package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/provider"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/metrics"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/tracing"
)

// EventPublisher receives one event per dispatched invocation.
type EventPublisher interface {
	PublishToolEvent(ctx context.Context, event *model.ToolEvent) error
}

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	Timeout     time.Duration
	Concurrency int
}

// Dispatcher runs tool invocations with access control and turns every
// failure into a structured result.
type Dispatcher struct {
	registry  *Registry
	publisher EventPublisher
	log       *logger.Logger
	timeout   time.Duration
	limit     int
}

// NewDispatcher creates a dispatcher. publisher may be nil.
func NewDispatcher(registry *Registry, publisher EventPublisher, log *logger.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{
		registry:  registry,
		publisher: publisher,
		log:       log,
		timeout:   cfg.Timeout,
		limit:     cfg.Concurrency,
	}
}

// Dispatch runs calls concurrently and returns one result per call, in order.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, calls []Invocation) []Result {
	results := make([]Result, len(calls))

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = d.run(ctx, caller, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) run(ctx context.Context, caller Caller, call Invocation) (result Result) {
	start := time.Now()
	result = Result{InvocationID: call.ID, Name: call.Name}

	ctx, span := tracing.Tracer().Start(ctx, "tool."+call.Name)
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.invocation_id", call.ID),
	)

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tool panicked",
				zap.String("tool", call.Name),
				zap.Any("panic", r),
			)
			result.Payload = nil
			result.Err = &Error{Code: CodeToolFailed, Message: "the tool failed unexpectedly"}
		}

		elapsed := time.Since(start)
		outcome := result.Outcome()
		metrics.RecordTool(call.Name, outcome, elapsed.Seconds())
		span.SetAttributes(attribute.String("tool.outcome", outcome))
		if result.Err != nil {
			span.SetStatus(codes.Error, result.Err.Message)
		}
		span.End()
		d.publish(ctx, caller, result, elapsed)
	}()

	h, ok := d.registry.Get(call.Name)
	if !ok {
		result.Err = &Error{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool %q", call.Name)}
		return result
	}
	if h.Definition().Paid && !caller.Tier.IsPaid() {
		result.Err = upgradeRequired(h.Definition().Name)
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	payload, err := h.Execute(runCtx, call.Arguments, caller)
	if err != nil {
		result.Err = d.toolError(call.Name, err)
		return result
	}
	result.Payload = payload
	return result
}

// toolError maps an execution error to the structured form shown to the model.
func (d *Dispatcher) toolError(name string, err error) *Error {
	var (
		toolErr *Error
		provErr *provider.Error
	)
	switch {
	case errors.As(err, &toolErr):
		return toolErr
	case errors.As(err, &provErr):
		d.log.Warn("provider call failed", zap.String("tool", name), zap.Int("status", provErr.Status), zap.String("reason", provErr.Message))
		return &Error{Code: CodeProviderError, Message: provErr.Message}
	case errors.Is(err, provider.ErrNotConfigured):
		return &Error{Code: CodeProviderError, Message: "the SEO data provider is not available right now"}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeTimeout, Message: "the tool took too long to respond"}
	default:
		d.log.Error("tool failed", zap.String("tool", name), zap.Error(err))
		return &Error{Code: CodeToolFailed, Message: "the tool could not complete the request"}
	}
}

func (d *Dispatcher) publish(ctx context.Context, caller Caller, result Result, elapsed time.Duration) {
	if d.publisher == nil {
		return
	}
	event := &model.ToolEvent{
		ID:           uuid.New().String(),
		UserID:       caller.UserID,
		InvocationID: result.InvocationID,
		Tool:         result.Name,
		Outcome:      result.Outcome(),
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if result.Err != nil {
		event.Outcome = "error"
		event.ErrorCode = result.Err.Code
	}
	// Publishing waits for a broker ack; it must not hold the tool's slot.
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := d.publisher.PublishToolEvent(ctx, event); err != nil {
			d.log.Debug("failed to publish tool event", zap.String("tool", event.Tool), zap.Error(err))
		}
	}()
}
