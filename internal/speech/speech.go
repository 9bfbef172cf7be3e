// Package speech defines the speech collaborator contracts: transcribing
// learner voice notes and synthesizing coach replies. Implementations live
// under internal/platform.
package speech

import (
	"context"
	"errors"
)

// Common errors returned by speech implementations
var (
	// ErrTranscription is returned when speech-to-text fails
	ErrTranscription = errors.New("failed to transcribe audio")

	// ErrSynthesis is returned when text-to-speech fails
	ErrSynthesis = errors.New("failed to synthesize speech")

	// ErrEmptyTranscript is returned when transcription yields no usable text
	ErrEmptyTranscript = errors.New("transcription produced empty text")

	// ErrAudioTooLong is returned when the audio exceeds the configured duration cap
	ErrAudioTooLong = errors.New("audio exceeds maximum allowed duration")
)

// Transcriber converts learner audio into text.
type Transcriber interface {
	// Transcribe returns the text of the given audio. The mimeType describes
	// the audio container (for example "audio/ogg").
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Synthesizer converts coach reply text into audio.
type Synthesizer interface {
	// Synthesize returns encoded audio for the given text along with its
	// mime type.
	Synthesize(ctx context.Context, text string) (audio []byte, mimeType string, err error)
}
