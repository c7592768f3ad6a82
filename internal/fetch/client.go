// Package fetch downloads the PLAsTiCC archive files over HTTP.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
	ErrEmptyRecord  = errors.New("manifest lists no files")
)

// Options configures the HTTP client.
type Options struct {
	// Timeout for a whole request including the body. 0 means no timeout.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// Client is a thin HTTP client for the archive. It does not retry.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		// Bodies must arrive as served; their length is checked against the manifest.
		DisableCompression: true,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		opts: opts,
	}
}

// Get performs a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if err := checkStatusCode(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	return resp.Body, nil
}

// RemoteFile describes one file listed in the archive manifest.
type RemoteFile struct {
	Name string
	URL  string
	Size int64
}

// zenodoRecord is the subset of a Zenodo records API response we use.
type zenodoRecord struct {
	Files []struct {
		Key   string `json:"key"`
		Size  int64  `json:"size"`
		Links struct {
			Self string `json:"self"`
		} `json:"links"`
	} `json:"files"`
}

// Manifest fetches the record at url and returns the files it lists.
func (c *Client) Manifest(ctx context.Context, url string) ([]RemoteFile, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer body.Close()

	var rec zenodoRecord
	if err := json.NewDecoder(body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if len(rec.Files) == 0 {
		return nil, ErrEmptyRecord
	}

	files := make([]RemoteFile, 0, len(rec.Files))
	for _, f := range rec.Files {
		if f.Key == "" || f.Links.Self == "" {
			return nil, fmt.Errorf("decoding manifest: file entry without key or link")
		}
		files = append(files, RemoteFile{Name: f.Key, URL: f.Links.Self, Size: f.Size})
	}
	return files, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
