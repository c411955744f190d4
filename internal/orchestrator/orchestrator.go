// Package orchestrator runs one chat turn against the completion backend:
// a non-streaming probe for tool calls, tool dispatch, then a streamed reply.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/llm"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/tools"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/metrics"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/tracing"
)

// Minutes charged per turn.
const (
	SimpleMinutes = 1
	ToolMinutes   = 2
)

// gracefulDegradation follows the tool results in the transcript.
const gracefulDegradation = "Some tool calls may have returned errors. Do not return an empty reply. " +
	"Use the successful results, briefly tell the user which data was unavailable and why if the error explains it, " +
	"and suggest a next step. If a tool requires an upgrade, mention that the feature is available on paid plans."

// Dispatcher runs tool invocations.
type Dispatcher interface {
	Dispatch(ctx context.Context, caller tools.Caller, calls []tools.Invocation) []tools.Result
}

// Config holds retry settings for the streamed leg after tool use.
type Config struct {
	StreamRetries  int
	RetryBaseDelay time.Duration
}

// Orchestrator coordinates a chat turn.
type Orchestrator struct {
	backend    llm.Backend
	dispatcher Dispatcher
	tools      []openai.Tool
	log        *logger.Logger
	retries    int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. catalog is attached to every probe.
func New(backend llm.Backend, dispatcher Dispatcher, catalog []openai.Tool, log *logger.Logger, cfg Config) *Orchestrator {
	if cfg.StreamRetries < 0 {
		cfg.StreamRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &Orchestrator{
		backend:    backend,
		dispatcher: dispatcher,
		tools:      catalog,
		log:        log,
		retries:    cfg.StreamRetries,
		baseDelay:  cfg.RetryBaseDelay,
		sleep:      sleepCtx,
	}
}

// Request is one chat turn.
type Request struct {
	Caller       tools.Caller
	Model        string
	SystemPrompt string
	Messages     []model.ChatMessage
}

// Result is a committed stream. The caller must close Body.
type Result struct {
	Body        io.ReadCloser
	Model       string
	UsedTools   bool
	Minutes     int
	ToolResults []tools.Result
}

// Run probes for tool calls, runs them if requested and returns the stream
// of the final completion.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "orchestrator.run")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", req.Model))

	transcript := buildTranscript(req.SystemPrompt, req.Messages)

	probe, err := o.probe(ctx, req.Model, transcript)
	if err != nil {
		o.log.Warn("probe failed, continuing without tools",
			zap.String("user_id", req.Caller.UserID),
			zap.String("model", req.Model),
			zap.Error(err),
		)
		metrics.ProbeOutcomes.WithLabelValues("failed").Inc()
		return o.simple(ctx, req.Model, transcript)
	}

	calls := toolCalls(probe)
	if len(calls) == 0 {
		metrics.ProbeOutcomes.WithLabelValues("no_tools").Inc()
		return o.simple(ctx, req.Model, transcript)
	}
	metrics.ProbeOutcomes.WithLabelValues("tools").Inc()
	span.SetAttributes(attribute.Int("tools.count", len(calls)))

	return o.withTools(ctx, req, transcript, probe, calls)
}

func (o *Orchestrator) probe(ctx context.Context, modelName string, transcript []openai.ChatCompletionMessage) (*openai.ChatCompletionMessage, error) {
	ctx, span := tracing.Tracer().Start(ctx, "orchestrator.probe")
	defer span.End()

	resp, err := o.backend.Probe(ctx, openai.ChatCompletionRequest{
		Model:      modelName,
		Messages:   transcript,
		Tools:      o.tools,
		ToolChoice: "auto",
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("probe returned no choices")
	}
	msg := resp.Choices[0].Message
	return &msg, nil
}

func (o *Orchestrator) simple(ctx context.Context, modelName string, transcript []openai.ChatCompletionMessage) (*Result, error) {
	body, err := o.stream(ctx, modelName, "simple", transcript)
	if err != nil {
		return nil, err
	}
	return &Result{Body: body, Model: modelName, Minutes: SimpleMinutes}, nil
}

func (o *Orchestrator) withTools(ctx context.Context, req Request, transcript []openai.ChatCompletionMessage, probe *openai.ChatCompletionMessage, calls []tools.Invocation) (*Result, error) {
	results := o.dispatcher.Dispatch(ctx, req.Caller, calls)

	assistant := openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   probe.Content,
		ToolCalls: make([]openai.ToolCall, len(calls)),
	}
	for i, c := range calls {
		assistant.ToolCalls[i] = openai.ToolCall{
			ID:   c.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.Name,
				Arguments: string(c.Arguments),
			},
		}
	}
	transcript = append(transcript, assistant)
	for _, r := range results {
		transcript = append(transcript, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: r.InvocationID,
			Name:       r.Name,
			Content:    r.Content(),
		})
	}
	transcript = append(transcript, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: gracefulDegradation,
	})

	body, err := o.streamWithRetry(ctx, req.Model, transcript)
	if err != nil {
		return nil, err
	}
	return &Result{Body: body, Model: req.Model, UsedTools: true, Minutes: ToolMinutes, ToolResults: results}, nil
}

// streamWithRetry makes up to 1+retries attempts with linear backoff.
func (o *Orchestrator) streamWithRetry(ctx context.Context, modelName string, transcript []openai.ChatCompletionMessage) (io.ReadCloser, error) {
	attempts := 1 + o.retries
	for attempt := 1; ; attempt++ {
		body, err := o.stream(ctx, modelName, "tools", transcript)
		if err == nil {
			return body, nil
		}
		if attempt >= attempts || !llm.Retryable(ctx, err) {
			return nil, err
		}

		delay := o.baseDelay * time.Duration(attempt)
		o.log.Warn("stream attempt failed, retrying",
			zap.String("model", modelName),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.LLMStreamRetries.WithLabelValues(modelName).Inc()
		if err := o.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (o *Orchestrator) stream(ctx context.Context, modelName, path string, transcript []openai.ChatCompletionMessage) (io.ReadCloser, error) {
	ctx, span := tracing.Tracer().Start(ctx, "orchestrator.stream")
	defer span.End()
	span.SetAttributes(attribute.String("orchestrator.path", path))

	start := time.Now()
	body, err := o.backend.Stream(ctx, openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: transcript,
	})
	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordLLMStream(modelName, path, status, time.Since(start).Seconds())
	return body, err
}

func buildTranscript(systemPrompt string, messages []model.ChatMessage) []openai.ChatCompletionMessage {
	transcript := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		transcript = append(transcript, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range messages {
		transcript = append(transcript, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return transcript
}

func toolCalls(msg *openai.ChatCompletionMessage) []tools.Invocation {
	calls := make([]tools.Invocation, 0, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, tools.Invocation{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: []byte(args),
		})
	}
	return calls
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
