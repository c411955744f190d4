package model

import (
	"time"
)

// EventType represents the type of interaction event.
type EventType string

const (
	EventTypeUsage EventType = "usage"
	EventTypeTool  EventType = "tool"
)

// UsageEvent is published after minutes are debited for a completed turn.
type UsageEvent struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Tier           string    `json:"tier"`
	Model          string    `json:"model"`
	Minutes        int       `json:"minutes"`
	UsedTools      bool      `json:"used_tools"`
	WeekStart      string    `json:"week_start"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToolEvent is published for every dispatched tool invocation.
type ToolEvent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	InvocationID string    `json:"invocation_id"`
	Tool         string    `json:"tool"`
	Outcome      string    `json:"outcome"`
	ErrorCode    string    `json:"error_code,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
