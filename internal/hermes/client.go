package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects announced after each pipeline run.
const (
	SubjectPublished     = "dataset.published"
	SubjectPublishFailed = "dataset.publish_failed"
)

// DatasetEvent describes the outcome of one publish run.
type DatasetEvent struct {
	RunID     string    `json:"run_id"`
	RepoID    string    `json:"repo_id"`
	Input     string    `json:"input"`
	Records   int       `json:"records"`
	CommitURL string    `json:"commit_url,omitempty"`
	CommitOID string    `json:"commit_oid,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("tsvhub"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Announce publishes the run outcome and flushes so the event leaves before
// the process exits.
func (c *Client) Announce(ctx context.Context, evt DatasetEvent) error {
	subject := SubjectPublished
	if evt.Error != "" {
		subject = SubjectPublishFailed
	}
	if err := c.Publish(subject, evt); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	c.conn.Close()
}
