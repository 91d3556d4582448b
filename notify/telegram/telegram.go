// Package telegram implements a Telegram Bot API notification sink.
//
// Progress messages mirror the chat channel the pipeline reports to:
// one message per phase transition plus a final summary with the produced
// artifact list.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deckhand-io/deckhand/iox"
	"github.com/deckhand-io/deckhand/notify"
	"github.com/deckhand-io/deckhand/types"
)

// DefaultAPIBase is the Telegram Bot API base URL.
const DefaultAPIBase = "https://api.telegram.org"

// DefaultTimeout is the default per-message timeout.
const DefaultTimeout = 10 * time.Second

// Config configures the Telegram sink.
type Config struct {
	// Token is the bot token (required). Never logged.
	Token string
	// ChatID is the destination chat (required).
	ChatID string
	// APIBase overrides the Bot API base URL (for testing).
	APIBase string
	// Timeout is the per-message timeout (default 10s).
	Timeout time.Duration
}

// Sink delivers pipeline progress as Telegram messages.
type Sink struct {
	config Config
	client *http.Client
}

// New creates a Telegram sink from the given config.
func New(cfg Config) (*Sink, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram sink requires a bot token")
	}
	if cfg.ChatID == "" {
		return nil, errors.New("telegram sink requires a chat id")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Sink{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Notify formats the event as a chat message and sends it.
func (s *Sink) Notify(ctx context.Context, _ string, event types.Event) error {
	text := FormatMessage(event)
	if text == "" {
		return nil
	}
	return s.sendMessage(ctx, text)
}

// FormatMessage renders an event as a user-facing progress message.
func FormatMessage(event types.Event) string {
	switch event.Type {
	case types.EventPhaseStarted:
		return fmt.Sprintf("[Phase %d/%d] Running %s...", event.PhaseIndex, event.PhaseCount, event.Phase)

	case types.EventPhaseFinished:
		if event.Failed == 0 {
			return fmt.Sprintf("[OK] Phase %d complete: %s", event.PhaseIndex, event.Phase)
		}
		return fmt.Sprintf("[WARN] Phase %d finished: %s (%d succeeded, %d failed)",
			event.PhaseIndex, event.Phase, event.Succeeded, event.Failed)

	case types.EventRunFinalized:
		var b strings.Builder
		switch event.Status {
		case types.RunSuccess:
			fmt.Fprintf(&b, "[DONE] %s / %s thesis complete.", event.Sector, event.Region)
		case types.RunPartialSuccess:
			fmt.Fprintf(&b, "[DONE] %s / %s thesis complete with gaps.", event.Sector, event.Region)
		default:
			fmt.Fprintf(&b, "[DONE] %s / %s finished: %s.", event.Sector, event.Region, event.Status)
		}
		if len(event.Artifacts) > 0 {
			fmt.Fprintf(&b, "\nArtifacts (%d):", len(event.Artifacts))
			for _, a := range event.Artifacts {
				fmt.Fprintf(&b, "\n- %s (%s)", a.Name, a.TaskName)
			}
		}
		return b.String()

	case types.EventRunFailed:
		return fmt.Sprintf("[ERROR] %s / %s run failed: %s", event.Sector, event.Region, event.Reason)

	default:
		return ""
	}
}

// sendRequest is the Bot API sendMessage request body.
type sendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// apiResponse is the Bot API response envelope.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *Sink) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(sendRequest{ChatID: s.config.ChatID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.config.APIBase, s.config.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// The error may embed the request URL, which contains the token.
		return fmt.Errorf("telegram: request failed: %s", redactToken(err.Error(), s.config.Token))
	}
	defer iox.DiscardClose(resp.Body)

	var parsed apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &parsed) == nil && !parsed.OK {
		return fmt.Errorf("telegram: API error: %s", parsed.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// redactToken hides the bot token in error text.
func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

// Close releases sink resources.
func (s *Sink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// Verify Sink implements the sink interface.
var _ notify.Sink = (*Sink)(nil)
