// Package llm is the client for the OpenAI-compatible completion backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Backend is the completion backend used by the orchestrator.
type Backend interface {
	// Probe sends a non-streaming completion request, typically with tools
	// attached, and returns the full response.
	Probe(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)

	// Stream sends a streaming completion request and returns the raw
	// server-sent event body. The caller must close it.
	Stream(ctx context.Context, req openai.ChatCompletionRequest) (io.ReadCloser, error)
}

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion backend returned status %d", e.Code)
}

// IsBilling reports whether err means the backend account is out of credit.
func IsBilling(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusPaymentRequired
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusPaymentRequired
	}
	return false
}

// Retryable reports whether a failed stream attempt may be retried.
// Transport failures and non-2xx replies are retryable; caller cancellation is not.
func Retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
