// Package elevenlabs implements the speech.Transcriber and
// speech.Synthesizer interfaces against the ElevenLabs HTTP API.
package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tskoli/kaiwa/internal/config"
	"github.com/tskoli/kaiwa/internal/retry"
	"github.com/tskoli/kaiwa/internal/speech"
)

// sttModelID is the ElevenLabs speech-to-text model.
const sttModelID = "scribe_v1"

// synthesisMimeType is the container ElevenLabs returns for synthesized
// audio.
const synthesisMimeType = "audio/mpeg"

// errTransient marks failures worth retrying: network errors, rate limits,
// and server-side errors.
var errTransient = errors.New("transient speech API error")

// Client talks to the ElevenLabs API. It implements both speech.Transcriber
// and speech.Synthesizer.
type Client struct {
	httpClient *resty.Client
	logger     *slog.Logger
	config     config.SpeechConfig
	policy     retry.Policy
}

var (
	_ speech.Transcriber = (*Client)(nil)
	_ speech.Synthesizer = (*Client)(nil)
)

// NewClient creates a Client from the provided configuration.
func NewClient(logger *slog.Logger, cfg config.SpeechConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("speech API key cannot be empty")
	}
	if cfg.VoiceID == "" {
		return nil, errors.New("speech voice ID cannot be empty")
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetHeader("xi-api-key", cfg.APIKey)

	policy := retry.DefaultPolicy()
	policy.RetryIf = func(err error) bool {
		return errors.Is(err, errTransient)
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     cfg,
		policy:     policy,
	}, nil
}

// classifyStatus wraps an HTTP error response, marking rate limits and
// server errors as transient.
func classifyStatus(status int, body string) error {
	err := fmt.Errorf("response error %d: %s", status, body)
	if status == 429 || status >= 500 {
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	return err
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe converts learner audio into text via speech-to-text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", speech.ErrTranscription)
	}

	start := time.Now()
	var transcript string
	err := c.policy.Do(ctx, "transcribe", func() error {
		response, err := c.httpClient.R().
			SetContext(ctx).
			SetFileReader("file", fileNameForMime(mimeType), bytes.NewReader(audio)).
			SetFormData(map[string]string{"model_id": sttModelID}).
			SetResult(&transcriptionResponse{}).
			Post("/v1/speech-to-text")
		if err != nil {
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		if response.IsError() {
			return classifyStatus(response.StatusCode(), response.String())
		}

		body := response.Result().(*transcriptionResponse)
		transcript = strings.TrimSpace(body.Text)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", speech.ErrTranscription, err)
	}
	if transcript == "" {
		return "", speech.ErrEmptyTranscript
	}

	c.logger.DebugContext(ctx, "transcribed audio",
		slog.Int("audio_bytes", len(audio)),
		slog.Int("transcript_chars", len(transcript)),
		slog.Duration("elapsed", time.Since(start)))
	return transcript, nil
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts coach reply text into an audio voice note.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("%w: empty text", speech.ErrSynthesis)
	}

	var audio []byte
	err := c.policy.Do(ctx, "synthesize", func() error {
		response, err := c.httpClient.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(synthesisRequest{Text: text, ModelID: c.config.ModelID}).
			Post("/v1/text-to-speech/" + c.config.VoiceID)
		if err != nil {
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		if response.IsError() {
			return classifyStatus(response.StatusCode(), response.String())
		}

		body := response.Body()
		if len(body) == 0 {
			return errors.New("empty audio response")
		}
		audio = append([]byte(nil), body...)
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", speech.ErrSynthesis, err)
	}

	c.logger.DebugContext(ctx, "synthesized reply audio",
		slog.Int("text_chars", len(text)),
		slog.Int("audio_bytes", len(audio)))
	return audio, synthesisMimeType, nil
}

// fileNameForMime gives the multipart upload a name matching its container.
func fileNameForMime(mimeType string) string {
	switch mimeType {
	case "audio/ogg", "audio/opus":
		return "voice.ogg"
	case "audio/mpeg", "audio/mp3":
		return "voice.mp3"
	case "audio/wav", "audio/x-wav":
		return "voice.wav"
	default:
		return "voice.bin"
	}
}
