package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

const (
	// StreamName is the name of the assistant events stream.
	StreamName = "ASSISTANT"

	// SubjectPrefix is the prefix for all assistant subjects.
	SubjectPrefix = "assistant"
)

// EventStream publishes usage and tool events.
type EventStream struct {
	client *Client
}

// NewEventStream creates an event stream on client.
func NewEventStream(client *Client) *EventStream {
	return &EventStream{client: client}
}

// EnsureStream creates the events stream if it does not exist.
func (s *EventStream) EnsureStream(ctx context.Context) error {
	js := s.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Assistant usage debits and tool invocations",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// UsageSubject returns the subject for a caller's usage events.
func UsageSubject(userID string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, token(userID), model.EventTypeUsage)
}

// ToolSubject returns the subject for a caller's invocations of tool.
func ToolSubject(userID, tool string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, token(userID), model.EventTypeTool, token(tool))
}

// PublishUsage publishes a usage debit.
func (s *EventStream) PublishUsage(ctx context.Context, event *model.UsageEvent) error {
	return s.publish(ctx, UsageSubject(event.UserID), event)
}

// PublishToolEvent publishes one tool invocation outcome.
func (s *EventStream) PublishToolEvent(ctx context.Context, event *model.ToolEvent) error {
	return s.publish(ctx, ToolSubject(event.UserID, event.Tool), event)
}

func (s *EventStream) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
