package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultEndpoint = "https://huggingface.co"

type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewClient(endpoint, token string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

// File is a single file added by a commit.
type File struct {
	Path    string
	Content []byte
}

// CommitInfo is returned by the Hub after a successful commit.
type CommitInfo struct {
	CommitURL string `json:"commitUrl"`
	CommitOID string `json:"commitOid"`
}

type createRepoRequest struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Private      bool   `json:"private"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ndjsonLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

type commitDeletion struct {
	Path string `json:"path"`
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// EnsureRepo creates the dataset repository. An existing repository is not an error.
func (c *Client) EnsureRepo(ctx context.Context, repoID string) error {
	org, name, err := splitRepoID(repoID)
	if err != nil {
		return &TransportError{Op: "create repo", Kind: KindNotFound, Err: err}
	}

	body, err := json.Marshal(createRepoRequest{Type: "dataset", Name: name, Organization: org})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, status, err := c.do(ctx, "create repo", http.MethodPost, "/api/repos/create", "application/json", body)
	if err != nil {
		if status == http.StatusConflict {
			return nil
		}
		return err
	}
	return nil
}

// ListFiles returns the file paths under dir on the main branch. A missing
// directory yields no paths.
func (c *Client) ListFiles(ctx context.Context, repoID, dir string) ([]string, error) {
	path := fmt.Sprintf("/api/datasets/%s/tree/main/%s?recursive=true", repoID, strings.Trim(dir, "/"))
	respBody, status, err := c.do(ctx, "list files", http.MethodGet, path, "", nil)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entries []treeEntry
	if err := json.Unmarshal(respBody, &entries); err != nil {
		return nil, &TransportError{Op: "list files", Kind: KindRemote, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	var paths []string
	for _, e := range entries {
		if e.Type == "file" {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

// Commit deletes the given paths and adds files on the main branch of a
// dataset repository, all in one commit.
func (c *Client) Commit(ctx context.Context, repoID, summary string, files []File, deletions []string) (*CommitInfo, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(ndjsonLine{Key: "header", Value: commitHeader{Summary: summary}}); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	for _, d := range deletions {
		if err := enc.Encode(ndjsonLine{Key: "deletedFile", Value: commitDeletion{Path: d}}); err != nil {
			return nil, fmt.Errorf("encode deletion %s: %w", d, err)
		}
	}
	for _, f := range files {
		line := ndjsonLine{Key: "file", Value: commitFile{
			Content:  base64.StdEncoding.EncodeToString(f.Content),
			Path:     f.Path,
			Encoding: "base64",
		}}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode file %s: %w", f.Path, err)
		}
	}

	path := fmt.Sprintf("/api/datasets/%s/commit/main", repoID)
	respBody, _, err := c.do(ctx, "commit", http.MethodPost, path, "application/x-ndjson", buf.Bytes())
	if err != nil {
		return nil, err
	}

	var info CommitInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, &TransportError{Op: "commit", Kind: KindRemote, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return &info, nil
}

// do sends body and returns the response body. Non-2xx responses come back as
// *TransportError together with the status code.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: op, Kind: KindNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, resp.StatusCode, &TransportError{
			Op:         op,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.New(msg),
		}
	}

	return respBody, resp.StatusCode, nil
}

func splitRepoID(repoID string) (org, name string, err error) {
	parts := strings.Split(repoID, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return "", parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("invalid repo id %q", repoID)
}
