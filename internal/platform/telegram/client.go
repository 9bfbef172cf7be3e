// Package telegram implements the messenger.Messenger interface against the
// Telegram Bot API. All messages go to the single configured chat.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/tskoli/kaiwa/internal/config"
	"github.com/tskoli/kaiwa/internal/messenger"
	"github.com/tskoli/kaiwa/internal/retry"
)

// maxMessageLength is the Telegram limit for one text message.
const maxMessageLength = 4096

var errTransient = errors.New("transient chat API error")

// Client delivers coach messages through a Telegram bot.
type Client struct {
	httpClient *resty.Client
	logger     *slog.Logger
	chatID     string
	policy     retry.Policy
}

var _ messenger.Messenger = (*Client)(nil)

// NewClient creates a Client from the provided configuration.
func NewClient(logger *slog.Logger, cfg config.ChatConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BotToken == "" {
		return nil, errors.New("bot token cannot be empty")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("chat ID cannot be empty")
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/") + "/bot" + cfg.BotToken)

	policy := retry.DefaultPolicy()
	policy.RetryIf = func(err error) bool {
		return errors.Is(err, errTransient)
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		chatID:     cfg.ChatID,
		policy:     policy,
	}, nil
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func classifyStatus(status int, body string) error {
	err := fmt.Errorf("response error %d: %s", status, body)
	if status == 429 || status >= 500 {
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	return err
}

// SendText delivers a plain text message to the configured chat. Messages
// over the Telegram length limit are split on paragraph boundaries.
func (c *Client) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return messenger.ErrInvalidPayload
	}

	for _, chunk := range splitMessage(text, maxMessageLength) {
		if err := c.sendChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, text string) error {
	err := c.policy.Do(ctx, "send_text", func() error {
		response, err := c.httpClient.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"chat_id": c.chatID,
				"text":    text,
			}).
			SetResult(&apiResponse{}).
			Post("/sendMessage")
		if err != nil {
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		if response.IsError() {
			return classifyStatus(response.StatusCode(), response.String())
		}
		if body := response.Result().(*apiResponse); !body.OK {
			return fmt.Errorf("api rejected message: %s", body.Description)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", messenger.ErrSendFailed, err)
	}

	c.logger.DebugContext(ctx, "delivered text message", slog.Int("chars", len(text)))
	return nil
}

// SendVoice delivers a voice note with an optional caption.
func (c *Client) SendVoice(ctx context.Context, audio []byte, mimeType, caption string) error {
	if len(audio) == 0 {
		return messenger.ErrInvalidPayload
	}

	err := c.policy.Do(ctx, "send_voice", func() error {
		request := c.httpClient.R().
			SetContext(ctx).
			SetFileReader("voice", "reply.ogg", bytes.NewReader(audio)).
			SetFormData(map[string]string{"chat_id": c.chatID}).
			SetResult(&apiResponse{})
		if caption != "" {
			request.SetFormData(map[string]string{"caption": caption})
		}

		response, err := request.Post("/sendVoice")
		if err != nil {
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		if response.IsError() {
			return classifyStatus(response.StatusCode(), response.String())
		}
		if body := response.Result().(*apiResponse); !body.OK {
			return fmt.Errorf("api rejected voice note: %s", body.Description)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", messenger.ErrSendFailed, err)
	}

	c.logger.DebugContext(ctx, "delivered voice note",
		slog.Int("audio_bytes", len(audio)),
		slog.String("mime_type", mimeType))
	return nil
}

// splitMessage breaks text into chunks no longer than limit, preferring
// paragraph then line boundaries.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		window := string(runes[:limit])
		if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
			cut = len([]rune(window[:idx]))
		} else if idx := strings.LastIndex(window, "\n"); idx > 0 {
			cut = len([]rune(window[:idx]))
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), "\n"))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
