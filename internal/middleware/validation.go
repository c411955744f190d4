package middleware

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

// Request limits for chat turns.
const (
	MaxMessages        = 100
	MaxContentLength   = 100000
	MaxDomainLength    = 253
	MaxModelNameLength = 128
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateMessages checks a chat history sent by the UI. System messages
// are rejected since the gateway owns the system prompt.
func ValidateMessages(messages []model.ChatMessage) error {
	if len(messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	if len(messages) > MaxMessages {
		return fmt.Errorf("at most %d messages are allowed", MaxMessages)
	}
	for i, m := range messages {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant:
		default:
			return fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
		if err := ValidateMessageContent(m.Content); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	if messages[len(messages)-1].Role != model.RoleUser {
		return errors.New("last message must be from the user")
	}
	return nil
}

// ValidateDomain bounds the raw domain field before normalization.
func ValidateDomain(domain string) error {
	if len(domain) > MaxDomainLength {
		return errors.New("domain exceeds maximum length")
	}
	if !utf8.ValidString(domain) {
		return errors.New("domain must be valid UTF-8")
	}
	return nil
}

// ValidateModel bounds the requested model name.
func ValidateModel(name string) error {
	if len(name) > MaxModelNameLength {
		return errors.New("model exceeds maximum length")
	}
	return nil
}
