// Package messenger defines the outbound delivery contract for coach
// messages: plain text and voice notes. Implementations live under
// internal/platform.
package messenger

import (
	"context"
	"errors"
)

// Common errors returned by messenger implementations
var (
	// ErrSendFailed is returned when a message cannot be delivered
	ErrSendFailed = errors.New("failed to deliver message")

	// ErrInvalidPayload is returned when the message payload is empty or malformed
	ErrInvalidPayload = errors.New("invalid message payload")
)

// Messenger delivers coach output to the learner's chat.
type Messenger interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, text string) error

	// SendVoice delivers an audio voice note with an optional caption.
	SendVoice(ctx context.Context, audio []byte, mimeType, caption string) error
}
