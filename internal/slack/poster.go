package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// RunSummary is the subset of a pipeline run reported to the channel.
type RunSummary struct {
	RunID     string
	RepoID    string
	Input     string
	Rows      int
	Records   int
	CommitURL string
	Duration  time.Duration
	Err       error
}

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostRunSummary posts the outcome of a publish run and returns the message ts.
func (p *Poster) PostRunSummary(ctx context.Context, s RunSummary) (string, error) {
	text := formatRunMessage(s)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted run summary to slack", "ts", slackResp.TS, "run_id", s.RunID)
	return slackResp.TS, nil
}

func formatRunMessage(s RunSummary) string {
	var sb strings.Builder

	if s.Err != nil {
		fmt.Fprintf(&sb, "*Dataset publish failed:* `%s`\n", s.RepoID)
	} else {
		fmt.Fprintf(&sb, "*Dataset published:* `%s`\n", s.RepoID)
	}
	fmt.Fprintf(&sb, "*Input:* %s\n", s.Input)
	fmt.Fprintf(&sb, "*Rows:* %d | *Records:* %d | *Took:* %s\n", s.Rows, s.Records, s.Duration.Round(time.Millisecond))
	if s.CommitURL != "" {
		fmt.Fprintf(&sb, "*Commit:* %s\n", s.CommitURL)
	}
	if s.Err != nil {
		fmt.Fprintf(&sb, "*Error:* %v\n", s.Err)
	}
	fmt.Fprintf(&sb, "_run %s_", s.RunID)

	return sb.String()
}
