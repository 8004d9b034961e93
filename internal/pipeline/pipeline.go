// Package pipeline runs load → transform → publish over a single input file,
// followed by the optional archive, ledger, announcement and Slack side channels.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tsvhub/internal/dataset"
	"github.com/MikeSquared-Agency/tsvhub/internal/hermes"
	"github.com/MikeSquared-Agency/tsvhub/internal/hub"
	"github.com/MikeSquared-Agency/tsvhub/internal/metrics"
	"github.com/MikeSquared-Agency/tsvhub/internal/slack"
	"github.com/MikeSquared-Agency/tsvhub/internal/store"
)

type Publisher interface {
	Publish(ctx context.Context, convs []dataset.Conversation) (*hub.Result, error)
}

type Archiver interface {
	Archive(ctx context.Context, runID, name string, payload []byte) (string, error)
}

type Ledger interface {
	RecordPublication(ctx context.Context, p store.Publication) error
}

type Announcer interface {
	Announce(ctx context.Context, evt hermes.DatasetEvent) error
}

type Notifier interface {
	PostRunSummary(ctx context.Context, s slack.RunSummary) (string, error)
}

// Report summarises one run.
type Report struct {
	RunID      uuid.UUID
	Input      string
	Rows       int
	Records    int
	CommitURL  string
	CommitOID  string
	ArchiveKey string
	StartedAt  time.Time
	Duration   time.Duration
}

type Pipeline struct {
	publisher Publisher
	archiver  Archiver
	ledger    Ledger
	announcer Announcer
	notifier  Notifier
	metrics   *metrics.Metrics
	delim     rune
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Pipeline)

func WithDelimiter(d rune) Option { return func(p *Pipeline) { p.delim = d } }
func WithArchiver(a Archiver) Option { return func(p *Pipeline) { p.archiver = a } }
func WithLedger(l Ledger) Option { return func(p *Pipeline) { p.ledger = l } }
func WithAnnouncer(a Announcer) Option { return func(p *Pipeline) { p.announcer = a } }
func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

func New(pub Publisher, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		publisher: pub,
		metrics:   m,
		delim:     '\t',
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run loads input, transforms every row and publishes the full collection.
// A load failure stops the run before anything is transformed or published.
func (p *Pipeline) Run(ctx context.Context, input string) (*Report, error) {
	rep := &Report{
		RunID:     uuid.New(),
		Input:     input,
		StartedAt: p.now().UTC(),
	}
	log := p.logger.With("run_id", rep.RunID.String())

	stage := p.now()
	rows, err := dataset.LoadFile(input, p.delim)
	p.metrics.ObserveStage("load", p.now().Sub(stage))
	if err != nil {
		return rep, p.finish(ctx, rep, fmt.Errorf("load: %w", err))
	}
	rep.Rows = len(rows)
	p.metrics.RowsLoaded(len(rows))
	log.Info("input loaded", "path", input, "rows", len(rows))

	stage = p.now()
	convs := dataset.TransformAll(rows)
	p.metrics.ObserveStage("transform", p.now().Sub(stage))
	rep.Records = len(convs)

	stage = p.now()
	res, err := p.publisher.Publish(ctx, convs)
	p.metrics.ObserveStage("publish", p.now().Sub(stage))
	if err != nil {
		return rep, p.finish(ctx, rep, fmt.Errorf("publish: %w", err))
	}
	p.metrics.RecordsEmitted("hub", len(convs))
	rep.CommitURL = res.CommitURL
	rep.CommitOID = res.CommitOID

	if p.archiver != nil {
		p.archive(ctx, log, rep, convs)
	}

	return rep, p.finish(ctx, rep, nil)
}

// Convert loads input and writes the records as JSONL to w without publishing.
func (p *Pipeline) Convert(input string, w io.Writer) (int, error) {
	rows, err := dataset.LoadFile(input, p.delim)
	if err != nil {
		p.metrics.Run(metrics.StatusFormatError)
		return 0, fmt.Errorf("load: %w", err)
	}
	p.metrics.RowsLoaded(len(rows))

	convs := dataset.TransformAll(rows)
	if err := dataset.WriteJSONL(w, convs); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	p.metrics.RecordsEmitted("stdout", len(convs))
	return len(convs), nil
}

func (p *Pipeline) archive(ctx context.Context, log *slog.Logger, rep *Report, convs []dataset.Conversation) {
	payload, err := dataset.MarshalJSONL(convs)
	if err != nil {
		log.Warn("archive skipped", "error", err)
		return
	}
	key, err := p.archiver.Archive(ctx, rep.RunID.String(), "train.jsonl", payload)
	if err != nil {
		log.Warn("archive failed", "error", err)
		return
	}
	rep.ArchiveKey = key
}

// finish records the outcome on every configured side channel. Side channel
// failures are logged and never replace runErr.
func (p *Pipeline) finish(ctx context.Context, rep *Report, runErr error) error {
	rep.Duration = p.now().UTC().Sub(rep.StartedAt)
	status := statusFor(runErr)
	p.metrics.Run(status)

	log := p.logger.With("run_id", rep.RunID.String())
	if runErr != nil {
		log.Error("run failed", "status", status, "error", runErr)
	} else {
		log.Info("run complete", "records", rep.Records, "commit", rep.CommitOID, "duration", rep.Duration)
	}

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	if p.ledger != nil {
		pubStatus := store.StatusPublished
		if runErr != nil {
			pubStatus = store.StatusFailed
		}
		err := p.ledger.RecordPublication(ctx, store.Publication{
			ID:         rep.RunID,
			RepoID:     hub.RepoID,
			InputPath:  rep.Input,
			RowsLoaded: rep.Rows,
			Records:    rep.Records,
			Status:     pubStatus,
			CommitURL:  rep.CommitURL,
			CommitOID:  rep.CommitOID,
			Error:      errText,
			StartedAt:  rep.StartedAt,
			FinishedAt: rep.StartedAt.Add(rep.Duration),
		})
		if err != nil {
			log.Warn("failed to record publication", "error", err)
		}
	}

	if p.announcer != nil {
		err := p.announcer.Announce(ctx, hermes.DatasetEvent{
			RunID:     rep.RunID.String(),
			RepoID:    hub.RepoID,
			Input:     rep.Input,
			Records:   rep.Records,
			CommitURL: rep.CommitURL,
			CommitOID: rep.CommitOID,
			Error:     errText,
			Timestamp: p.now().UTC(),
		})
		if err != nil {
			log.Warn("failed to announce run", "error", err)
		}
	}

	if p.notifier != nil {
		_, err := p.notifier.PostRunSummary(ctx, slack.RunSummary{
			RunID:     rep.RunID.String(),
			RepoID:    hub.RepoID,
			Input:     rep.Input,
			Rows:      rep.Rows,
			Records:   rep.Records,
			CommitURL: rep.CommitURL,
			Duration:  rep.Duration,
			Err:       runErr,
		})
		if err != nil {
			log.Warn("failed to post run summary", "error", err)
		}
	}

	return runErr
}

func statusFor(err error) string {
	if err == nil {
		return metrics.StatusPublished
	}
	var ferr *dataset.FormatError
	if errors.As(err, &ferr) {
		return metrics.StatusFormatError
	}
	var terr *hub.TransportError
	if errors.As(err, &terr) {
		return metrics.StatusTransport
	}
	return metrics.StatusFailed
}
