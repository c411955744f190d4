package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/entitlement"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/llm"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/tools"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

const okStream = "data: {\"choices\":[{\"delta\":{\"content\":\"The volume is 90,500.\"}}]}\n\ndata: [DONE]\n\n"

// fakeBackend replays scripted probe and stream outcomes.
type fakeBackend struct {
	mu         sync.Mutex
	probeResp  *openai.ChatCompletionResponse
	probeErr   error
	streamErrs []error
	probeReqs  []openai.ChatCompletionRequest
	streamReqs []openai.ChatCompletionRequest
}

func (b *fakeBackend) Probe(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeReqs = append(b.probeReqs, req)
	return b.probeResp, b.probeErr
}

func (b *fakeBackend) Stream(ctx context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamReqs = append(b.streamReqs, req)
	if n := len(b.streamReqs); n <= len(b.streamErrs) && b.streamErrs[n-1] != nil {
		return nil, b.streamErrs[n-1]
	}
	return io.NopCloser(strings.NewReader(okStream)), nil
}

type fakeDispatcher struct {
	calls  []tools.Invocation
	caller tools.Caller
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, caller tools.Caller, calls []tools.Invocation) []tools.Result {
	d.caller = caller
	d.calls = calls
	results := make([]tools.Result, len(calls))
	for i, c := range calls {
		results[i] = tools.Result{
			InvocationID: c.ID,
			Name:         c.Name,
			Payload:      map[string]any{"keywords": []map[string]any{{"keyword": "plumber near me", "search_volume": 90500, "cpc": 18.42}}},
		}
	}
	return results
}

func textProbe() *openai.ChatCompletionResponse {
	return &openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Hello!"},
	}}}
}

func toolProbe() *openai.ChatCompletionResponse {
	return &openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:   "call_abc",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      string(tools.KeywordMetrics),
					Arguments: `{"keywords":["plumber near me"]}`,
				},
			}},
		},
		FinishReason: openai.FinishReasonToolCalls,
	}}}
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestOrchestrator(b llm.Backend, d Dispatcher) (*Orchestrator, *recordedSleeps) {
	o := New(b, d, []openai.Tool{{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{Name: string(tools.KeywordMetrics)}}},
		logger.Nop(), Config{StreamRetries: 2, RetryBaseDelay: time.Second})
	sleeps := &recordedSleeps{}
	o.sleep = sleeps.sleep
	return o, sleeps
}

func testRequest() Request {
	return Request{
		Caller:       tools.Caller{UserID: "u1", Tier: entitlement.TierBasic, Domain: "example.com"},
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are an SEO assistant.",
		Messages:     []model.ChatMessage{{Role: model.RoleUser, Content: "what's the search volume for 'plumber near me'"}},
	}
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	return string(b)
}

func TestSimplePath(t *testing.T) {
	backend := &fakeBackend{probeResp: textProbe()}
	dispatcher := &fakeDispatcher{}
	o, _ := newTestOrchestrator(backend, dispatcher)

	res, err := o.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.UsedTools || res.Minutes != SimpleMinutes {
		t.Errorf("result = %+v, want simple path", res)
	}
	if got := readAll(t, res.Body); got != okStream {
		t.Errorf("body = %q", got)
	}

	probe := backend.probeReqs[0]
	if probe.ToolChoice != "auto" || len(probe.Tools) != 1 {
		t.Errorf("probe tool_choice=%v tools=%d", probe.ToolChoice, len(probe.Tools))
	}
	if len(backend.streamReqs) != 1 {
		t.Fatalf("stream calls = %d, want 1", len(backend.streamReqs))
	}
	msgs := backend.streamReqs[0].Messages
	if len(msgs) != 2 || msgs[0].Role != openai.ChatMessageRoleSystem || msgs[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("stream transcript = %+v", msgs)
	}
	if dispatcher.calls != nil {
		t.Error("dispatcher called on simple path")
	}
}

func TestSimplePathDoesNotRetry(t *testing.T) {
	backend := &fakeBackend{probeResp: textProbe(), streamErrs: []error{&llm.StatusError{Code: 503}}}
	o, sleeps := newTestOrchestrator(backend, &fakeDispatcher{})

	_, err := o.Run(context.Background(), testRequest())
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if len(backend.streamReqs) != 1 || len(sleeps.delays) != 0 {
		t.Errorf("stream calls = %d sleeps = %v, want 1 and none", len(backend.streamReqs), sleeps.delays)
	}
}

func TestToolPathRetriesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{
		probeResp:  toolProbe(),
		streamErrs: []error{&llm.StatusError{Code: 502}, errors.New("connection reset")},
	}
	dispatcher := &fakeDispatcher{}
	o, sleeps := newTestOrchestrator(backend, dispatcher)

	res, err := o.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.UsedTools || res.Minutes != ToolMinutes {
		t.Errorf("result = %+v, want tool path", res)
	}
	if got := readAll(t, res.Body); got != okStream {
		t.Errorf("body = %q", got)
	}
	if len(backend.streamReqs) != 3 {
		t.Errorf("stream calls = %d, want 3", len(backend.streamReqs))
	}
	if len(sleeps.delays) != 2 || sleeps.delays[0] != time.Second || sleeps.delays[1] != 2*time.Second {
		t.Errorf("backoff = %v, want [1s 2s]", sleeps.delays)
	}

	if len(dispatcher.calls) != 1 || dispatcher.calls[0].ID != "call_abc" || dispatcher.caller.Domain != "example.com" {
		t.Errorf("dispatched = %+v caller = %+v", dispatcher.calls, dispatcher.caller)
	}

	msgs := backend.streamReqs[2].Messages
	if len(msgs) != 5 {
		t.Fatalf("transcript length = %d, want 5", len(msgs))
	}
	if msgs[2].Role != openai.ChatMessageRoleAssistant || len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].ID != "call_abc" {
		t.Errorf("assistant tool-call message = %+v", msgs[2])
	}
	if msgs[3].Role != openai.ChatMessageRoleTool || msgs[3].ToolCallID != "call_abc" || !strings.Contains(msgs[3].Content, "90500") {
		t.Errorf("tool message = %+v", msgs[3])
	}
	if msgs[4].Role != openai.ChatMessageRoleSystem || !strings.Contains(msgs[4].Content, "Do not return an empty reply") {
		t.Errorf("degradation instruction = %+v", msgs[4])
	}
}

func TestToolPathGivesUpAfterRetries(t *testing.T) {
	fail := &llm.StatusError{Code: 500}
	backend := &fakeBackend{probeResp: toolProbe(), streamErrs: []error{fail, fail, fail}}
	o, sleeps := newTestOrchestrator(backend, &fakeDispatcher{})

	_, err := o.Run(context.Background(), testRequest())
	if !errors.Is(err, fail) {
		t.Fatalf("err = %v, want the last stream error", err)
	}
	if len(backend.streamReqs) != 3 || len(sleeps.delays) != 2 {
		t.Errorf("stream calls = %d sleeps = %d, want 3 and 2", len(backend.streamReqs), len(sleeps.delays))
	}
}

func TestProbeFailureDegradesToSimplePath(t *testing.T) {
	backend := &fakeBackend{probeErr: errors.New("probe timeout")}
	dispatcher := &fakeDispatcher{}
	o, _ := newTestOrchestrator(backend, dispatcher)

	res, err := o.Run(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer res.Body.Close()
	if res.UsedTools || res.Minutes != SimpleMinutes {
		t.Errorf("result = %+v, want simple path", res)
	}
	if dispatcher.calls != nil || len(backend.streamReqs) != 1 {
		t.Errorf("dispatched = %v stream calls = %d", dispatcher.calls, len(backend.streamReqs))
	}
}

func TestRetryStopsWhenCallerLeaves(t *testing.T) {
	backend := &fakeBackend{probeResp: toolProbe(), streamErrs: []error{&llm.StatusError{Code: 502}, nil}}
	o, _ := newTestOrchestrator(backend, &fakeDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	o.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	if _, err := o.Run(ctx, testRequest()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(backend.streamReqs) != 1 {
		t.Errorf("stream calls = %d, want 1", len(backend.streamReqs))
	}
}

func TestToolCallsFillsMissingIDs(t *testing.T) {
	calls := toolCalls(&openai.ChatCompletionMessage{ToolCalls: []openai.ToolCall{
		{Function: openai.FunctionCall{Name: "get_guide"}},
	}})
	if calls[0].ID != "call_0" || string(calls[0].Arguments) != "{}" {
		t.Errorf("call = %+v", calls[0])
	}
}
