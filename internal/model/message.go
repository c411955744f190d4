// Package model defines data structures shared across the gateway.
package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ChatMessage is one entry of the conversation sent by the chat UI.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Messages       []ChatMessage `json:"messages"`
	ConversationID string        `json:"conversationId,omitempty"`
	Domain         string        `json:"domain,omitempty"`
	CheckUsage     bool          `json:"checkUsage,omitempty"`
	Model          string        `json:"model,omitempty"`
}

// UsageStatus describes a caller's weekly quota position.
// MinutesLimit is nil when the tier has no ceiling.
type UsageStatus struct {
	MinutesUsed  int    `json:"minutesUsed"`
	MinutesLimit *int   `json:"minutesLimit"`
	Tier         string `json:"tier"`
	CanUse       bool   `json:"canUse"`
	IsUnlimited  bool   `json:"isUnlimited"`
	IsAdmin      bool   `json:"isAdmin"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error      string       `json:"error"`
	Message    string       `json:"message,omitempty"`
	RetryAfter int          `json:"retryAfter,omitempty"`
	Usage      *UsageStatus `json:"usage,omitempty"`
}
