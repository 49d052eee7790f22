package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tickd/internal/application/port"
)

// SlackSink forwards alerts at or above a minimum severity to a Slack
// incoming webhook. Runs on the dispatcher goroutine, never on the hot path.
type SlackSink struct {
	webhookURL string
	channel    string
	minLevel   port.Level
	client     *http.Client
}

func NewSlackSink(webhookURL, channel string, minLevel port.Level) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		channel:    channel,
		minLevel:   minLevel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type slackPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (s *SlackSink) Emit(level port.Level, msg string, ts time.Time) error {
	if level < s.minLevel {
		return nil
	}

	body, err := json.Marshal(slackPayload{
		Channel: s.channel,
		Text:    fmt.Sprintf("%s: %s", level.String(), msg),
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
