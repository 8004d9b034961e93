package hub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/tsvhub/internal/dataset"
)

// RepoID is the dataset repository every publish targets.
const RepoID = "jonascheng/ForbiddenCodeWriting"

// DataDir holds the split files. Every publish replaces its contents.
const DataDir = "data"

// DataPath is where the records land, named like a single-shard train split
// so the Hub's data/train-* resolution picks it up.
const DataPath = DataDir + "/train-00000-of-00001.jsonl"

// Result describes a completed publish.
type Result struct {
	RepoID    string
	Path      string
	Records   int
	Bytes     int
	CommitURL string
	CommitOID string
}

// Publisher uploads conversation records to the Hub.
type Publisher struct {
	client *Client
	logger *slog.Logger
}

func NewPublisher(client *Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish replaces the split files with the whole collection in one commit:
// existing files under data/ are deleted and the new file added together, so
// readers never see a mix of old and new records. An empty collection is still
// committed (as an empty data file).
//
// The file is sent inline, not through LFS, and the Hub rejects inline files
// above roughly 10 MiB; such a publish fails with a KindRemote TransportError.
func (p *Publisher) Publish(ctx context.Context, convs []dataset.Conversation) (*Result, error) {
	payload, err := dataset.MarshalJSONL(convs)
	if err != nil {
		return nil, fmt.Errorf("render records: %w", err)
	}

	if err := p.client.EnsureRepo(ctx, RepoID); err != nil {
		return nil, err
	}

	existing, err := p.client.ListFiles(ctx, RepoID, DataDir)
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, path := range existing {
		if path != DataPath {
			stale = append(stale, path)
		}
	}

	summary := fmt.Sprintf("Upload %d conversation records", len(convs))
	info, err := p.client.Commit(ctx, RepoID, summary, []File{{Path: DataPath, Content: payload}}, stale)
	if err != nil {
		return nil, err
	}

	p.logger.Info("dataset published",
		"repo", RepoID,
		"records", len(convs),
		"bytes", len(payload),
		"replaced", len(stale),
		"commit", info.CommitOID,
	)

	return &Result{
		RepoID:    RepoID,
		Path:      DataPath,
		Records:   len(convs),
		Bytes:     len(payload),
		CommitURL: info.CommitURL,
		CommitOID: info.CommitOID,
	}, nil
}
