package hub

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnsureRepo_Created(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/repos/create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req createRepoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Type != "dataset" || req.Name != "ForbiddenCodeWriting" || req.Organization != "jonascheng" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"url":"https://huggingface.co/datasets/jonascheng/ForbiddenCodeWriting"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "hf_test")
	if err := c.EnsureRepo(context.Background(), RepoID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureRepo_AlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"You already created this dataset repo"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "hf_test")
	if err := c.EnsureRepo(context.Background(), RepoID); err != nil {
		t.Fatalf("expected conflict to be ignored, got %v", err)
	}
}

func TestCommit_NDJSONPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/datasets/jonascheng/ForbiddenCodeWriting/commit/main" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/x-ndjson" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}

		var lines []map[string]json.RawMessage
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var line map[string]json.RawMessage
			if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
				t.Fatalf("bad ndjson line %q: %v", sc.Text(), err)
			}
			lines = append(lines, line)
		}
		if len(lines) != 2 {
			t.Fatalf("expected header + 1 file line, got %d", len(lines))
		}
		if string(lines[0]["key"]) != `"header"` || string(lines[1]["key"]) != `"file"` {
			t.Errorf("unexpected keys %s %s", lines[0]["key"], lines[1]["key"])
		}

		var header commitHeader
		json.Unmarshal(lines[0]["value"], &header)
		if header.Summary != "add data" {
			t.Errorf("summary = %q", header.Summary)
		}

		var file commitFile
		json.Unmarshal(lines[1]["value"], &file)
		if file.Path != DataPath || file.Encoding != "base64" {
			t.Errorf("unexpected file line %+v", file)
		}
		content, err := base64.StdEncoding.DecodeString(file.Content)
		if err != nil {
			t.Fatalf("decode content: %v", err)
		}
		if string(content) != "{}\n" {
			t.Errorf("content = %q", content)
		}

		json.NewEncoder(w).Encode(CommitInfo{CommitURL: "https://hub/commit/abc", CommitOID: "abc"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "hf_test")
	info, err := c.Commit(context.Background(), RepoID, "add data", []File{{Path: DataPath, Content: []byte("{}\n")}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.CommitOID != "abc" || info.CommitURL != "https://hub/commit/abc" {
		t.Errorf("unexpected commit info %+v", info)
	}
}

func TestCommit_DeletesBeforeAdding(t *testing.T) {
	var keys []string
	var deleted []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var line struct {
				Key   string          `json:"key"`
				Value json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
				t.Fatalf("bad ndjson line %q: %v", sc.Text(), err)
			}
			keys = append(keys, line.Key)
			if line.Key == "deletedFile" {
				var d commitDeletion
				json.Unmarshal(line.Value, &d)
				deleted = append(deleted, d.Path)
			}
		}
		json.NewEncoder(w).Encode(CommitInfo{CommitOID: "def"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "hf_test")
	_, err := c.Commit(context.Background(), RepoID, "replace split",
		[]File{{Path: DataPath, Content: []byte("{}\n")}},
		[]string{"data/train-00000-of-00001.parquet"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantKeys := []string{"header", "deletedFile", "file"}
	if len(keys) != len(wantKeys) {
		t.Fatalf("keys = %v, want %v", keys, wantKeys)
	}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], wantKeys[i])
		}
	}
	if len(deleted) != 1 || deleted[0] != "data/train-00000-of-00001.parquet" {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestListFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/datasets/jonascheng/ForbiddenCodeWriting/tree/main/data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("recursive") != "true" {
			t.Errorf("expected recursive listing, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"type":"file","path":"data/train-00000-of-00001.parquet"},
			{"type":"directory","path":"data/extra"},
			{"type":"file","path":"data/extra/test-00000-of-00001.parquet"}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "hf_test")
	paths, err := c.ListFiles(context.Background(), RepoID, "data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 || paths[0] != "data/train-00000-of-00001.parquet" || paths[1] != "data/extra/test-00000-of-00001.parquet" {
		t.Errorf("paths = %v", paths)
	}
}

func TestListFiles_MissingDirectory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Entry not found"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "hf_test")
	paths, err := c.ListFiles(context.Background(), RepoID, "data")
	if err != nil {
		t.Fatalf("expected missing directory to be empty, got %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %v", paths)
	}
}

func TestCommit_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   string
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuth},
		{"forbidden", http.StatusForbidden, KindAuth},
		{"not found", http.StatusNotFound, KindNotFound},
		{"server error", http.StatusInternalServerError, KindRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			c := NewClient(server.URL, "hf_test")
			_, err := c.Commit(context.Background(), RepoID, "x", nil, nil)

			var terr *TransportError
			if !errors.As(err, &terr) {
				t.Fatalf("expected *TransportError, got %v", err)
			}
			if terr.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", terr.Kind, tt.kind)
			}
			if terr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", terr.StatusCode, tt.status)
			}
			if terr.Err.Error() != "nope" {
				t.Errorf("message = %q", terr.Err.Error())
			}
		})
	}
}

func TestCommit_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, "hf_test")
	_, err := c.Commit(context.Background(), RepoID, "x", nil, nil)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if terr.Kind != KindNetwork {
		t.Errorf("kind = %q, want network", terr.Kind)
	}
}

func TestSplitRepoID(t *testing.T) {
	tests := []struct {
		in        string
		org, name string
		wantErr   bool
	}{
		{"jonascheng/ForbiddenCodeWriting", "jonascheng", "ForbiddenCodeWriting", false},
		{"solo", "", "solo", false},
		{"", "", "", true},
		{"a/b/c", "", "", true},
		{"/b", "", "", true},
	}

	for _, tt := range tests {
		org, name, err := splitRepoID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("splitRepoID(%q) err = %v", tt.in, err)
			continue
		}
		if org != tt.org || name != tt.name {
			t.Errorf("splitRepoID(%q) = %q %q", tt.in, org, name)
		}
	}
}
