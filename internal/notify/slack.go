package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const slackBaseURL = "https://slack.com"

// SlackClient posts messages via the Slack Web API.
type SlackClient struct {
	token   string
	client  *http.Client
	baseURL string
}

// NewSlackClient creates a Slack client with the given bot token.
func NewSlackClient(token string) *SlackClient {
	return &SlackClient{
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: slackBaseURL,
	}
}

type slackPostResponse struct {
	OK      bool   `json:"ok"`
	TS      string `json:"ts"`
	Channel string `json:"channel"`
	Error   string `json:"error"`
}

// PostMessage posts text to a channel and returns the message timestamp.
func (c *SlackClient) PostMessage(ctx context.Context, channel, text string) (string, error) {
	payload := map[string]string{
		"channel": channel,
		"text":    text,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat.postMessage", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	var sr slackPostResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("slack response decode failed: %w", err)
	}
	if !sr.OK {
		return "", fmt.Errorf("slack API error: %s", sr.Error)
	}

	return sr.TS, nil
}

// MessageURL builds a permalink from a channel id and message timestamp.
func MessageURL(channel, ts string) string {
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", channel, strings.Replace(ts, ".", "", 1))
}
