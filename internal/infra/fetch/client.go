// Package fetch provides the HTTP download client.
package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
)

// Client wraps an http.Client with the wipbot user agent and an overall
// request timeout. The timeout bounds a stalled connection; without it a
// hung fetch would starve the single download worker.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a download client.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// ProgressWriter wraps a writer and reports progress after every chunk.
type ProgressWriter struct {
	Writer   io.Writer
	Total    int64
	Written  int64
	OnUpdate func(written, total int64)
}

// Write implements io.Writer.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// DownloadFile streams the URL to destPath. Progress is reported per chunk
// when onProgress is non-nil; cancelling the context aborts the copy at the
// next chunk boundary.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return errors.Wrap(err, "create file")
	}
	defer file.Close()

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{Writer: file, Total: resp.ContentLength, OnUpdate: onProgress}
	}

	_, err = io.Copy(writer, resp.Body)
	return err
}
