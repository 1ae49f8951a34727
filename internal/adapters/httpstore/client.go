package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// Client is a ports.Backend talking to a Server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// gets a client with a 60s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) blobURL(d domain.Digest) string {
	return c.baseURL + BlobsPath + "/" + d.String()
}

// PutIfAbsent uploads blob. The server answers 201 when it created the
// entry, 200 when an equal blob was already present and 409 with the stored
// bytes otherwise.
func (c *Client) PutIfAbsent(ctx context.Context, d domain.Digest, blob []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.blobURL(d), bytes.NewReader(blob))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, zerr.Wrap(err, "put blob")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil, true, nil
	case http.StatusOK:
		return blob, false, nil
	case http.StatusConflict:
		existing, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, zerr.Wrap(err, "read conflicting blob")
		}
		return existing, false, nil
	default:
		return nil, false, statusError(resp, "put blob")
	}
}

// Get downloads the blob under d.
func (c *Client) Get(ctx context.Context, d domain.Digest) ([]byte, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, d)
	if err != nil {
		return nil, false, zerr.Wrap(err, "get blob")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		blob, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, zerr.Wrap(err, "read blob")
		}
		return blob, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, statusError(resp, "get blob")
	}
}

// Contains issues a HEAD for d.
func (c *Client) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, d)
	if err != nil {
		return false, zerr.Wrap(err, "head blob")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp, "head blob")
	}
}

// Entries fetches the server's entry list. A server whose store cannot list
// answers 501, reported as domain.ErrListUnsupported.
func (c *Client) Entries(ctx context.Context) ([]ports.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+BlobsPath+"/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, "list blobs")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotImplemented:
		return nil, zerr.Wrap(domain.ErrListUnsupported, "store server cannot list entries")
	default:
		return nil, statusError(resp, "list blobs")
	}

	var listed []listedEntry
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, zerr.Wrap(err, "decode blob list")
	}
	out := make([]ports.Entry, 0, len(listed))
	for _, e := range listed {
		out = append(out, ports.Entry{Digest: e.Digest, Size: e.Size})
	}
	return out, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method string, d domain.Digest) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.blobURL(d), nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func statusError(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return zerr.With(
		zerr.Wrap(domain.ErrStoreIO, fmt.Sprintf("%s: unexpected status %d", op, resp.StatusCode)),
		"body", strings.TrimSpace(string(body)),
	)
}
