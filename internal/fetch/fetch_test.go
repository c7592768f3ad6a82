package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T, payload []byte, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/file.csv.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher() *Fetcher {
	return NewFetcher(NewClient(Options{Timeout: 5 * time.Second, UserAgent: "test"}))
}

func TestEnsureDownloadedSkipsCompleteFile(t *testing.T) {
	payload := []byte(strings.Repeat("a", 4096))
	var hits atomic.Int32
	srv := newTestServer(t, payload, &hits)
	dest := filepath.Join(t.TempDir(), "file.csv.gz")
	f := newFetcher()

	if err := f.EnsureDownloaded(context.Background(), srv.URL+"/file.csv.gz", dest, int64(len(payload))); err != nil {
		t.Fatalf("first EnsureDownloaded() error: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("first call made %d requests, want 1", hits.Load())
	}

	if err := f.EnsureDownloaded(context.Background(), srv.URL+"/file.csv.gz", dest, int64(len(payload))); err != nil {
		t.Fatalf("second EnsureDownloaded() error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("second call made a request; total %d, want 1", hits.Load())
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("downloaded content differs from payload")
	}
	if _, err := os.Stat(dest + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf(".part file left behind: %v", err)
	}
}

func TestEnsureDownloadedReplacesPartialFile(t *testing.T) {
	payload := []byte("object_id,mjd\n615,59750.4\n")
	var hits atomic.Int32
	srv := newTestServer(t, payload, &hits)
	dest := filepath.Join(t.TempDir(), "file.csv.gz")

	if err := os.WriteFile(dest, payload[:5], 0o644); err != nil {
		t.Fatal(err)
	}

	if err := newFetcher().EnsureDownloaded(context.Background(), srv.URL+"/file.csv.gz", dest, int64(len(payload))); err != nil {
		t.Fatalf("EnsureDownloaded() error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("made %d requests, want 1", hits.Load())
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, payload) {
		t.Errorf("content = %q, want %q", got, payload)
	}
}

func TestEnsureDownloadedSizeMismatch(t *testing.T) {
	payload := []byte("short")
	var hits atomic.Int32
	srv := newTestServer(t, payload, &hits)
	dest := filepath.Join(t.TempDir(), "file.csv.gz")

	err := newFetcher().EnsureDownloaded(context.Background(), srv.URL+"/file.csv.gz", dest, 100)

	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected SizeMismatchError, got %v", err)
	}
	if sm.Expected != 100 || sm.Actual != int64(len(payload)) {
		t.Errorf("unexpected mismatch: %+v", sm)
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("destination should not exist after a failed download: %v", err)
	}
	if _, err := os.Stat(dest + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf(".part file left behind: %v", err)
	}
}

func TestEnsureDownloadedNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, nil, &hits)
	dest := filepath.Join(t.TempDir(), "missing.csv.gz")

	err := newFetcher().EnsureDownloaded(context.Background(), srv.URL+"/missing.csv.gz", dest, 10)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("made %d requests, want exactly 1 (no retries)", hits.Load())
	}
}

func TestEnsureDownloadedDrawsProgress(t *testing.T) {
	payload := []byte(strings.Repeat("b", 2048))
	var hits atomic.Int32
	srv := newTestServer(t, payload, &hits)
	dest := filepath.Join(t.TempDir(), "file.csv.gz")

	var out bytes.Buffer
	f := newFetcher()
	f.Progress = &out
	if err := f.EnsureDownloaded(context.Background(), srv.URL+"/file.csv.gz", dest, int64(len(payload))); err != nil {
		t.Fatalf("EnsureDownloaded() error: %v", err)
	}
	if !strings.Contains(out.String(), "2048 bytes in") {
		t.Errorf("progress output missing summary: %q", out.String())
	}
}

func TestCheckStatusCode(t *testing.T) {
	tests := []struct {
		code    int
		wantErr error
	}{
		{200, nil},
		{206, nil},
		{401, ErrUnauthorized},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{503, ErrServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := checkStatusCode(tt.code)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("checkStatusCode(%d) = %v, want nil", tt.code, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("checkStatusCode(%d) = %v, want %v", tt.code, err, tt.wantErr)
			}
		})
	}

	if err := checkStatusCode(418); err == nil {
		t.Error("checkStatusCode(418) = nil, want error")
	}
}

func TestManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test" {
			t.Errorf("User-Agent = %q, want test", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": 2539456,
			"files": [
				{"key": "plasticc_train_metadata.csv.gz", "size": 310, "links": {"self": "https://example.org/a"}},
				{"key": "plasticc_test_metadata.csv.gz", "size": 720, "links": {"self": "https://example.org/b"}}
			]
		}`)
	}))
	defer srv.Close()

	files, err := NewClient(Options{UserAgent: "test"}).Manifest(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Manifest() error: %v", err)
	}
	want := []RemoteFile{
		{Name: "plasticc_train_metadata.csv.gz", URL: "https://example.org/a", Size: 310},
		{Name: "plasticc_test_metadata.csv.gz", URL: "https://example.org/b", Size: 720},
	}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d", len(files), len(want))
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %+v, want %+v", i, files[i], want[i])
		}
	}
}

func TestManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{"empty", `{"files": []}`, ErrEmptyRecord},
		{"missing link", `{"files": [{"key": "a", "size": 1, "links": {}}]}`, nil},
		{"not json", `<html>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(Options{}).Manifest(context.Background(), srv.URL)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("error = %v, want %v", err, tt.is)
			}
		})
	}
}
