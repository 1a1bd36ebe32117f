// Package download streams catalog resources into the staging area.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/comexcl/internal/logging"
)

// ErrDownload is returned for transport errors and non-success statuses.
var ErrDownload = errors.New("download failed")

// errIdle cancels a download whose body stopped arriving.
var errIdle = errors.New("no data received within read timeout")

// Downloader performs single-attempt streaming GETs. There is no retry:
// callers treat any failure as fatal to the run.
type Downloader struct {
	http        *http.Client
	readTimeout time.Duration
}

// New creates a Downloader. timeout bounds connecting, the TLS handshake,
// waiting for response headers and each gap between body reads. A body that
// keeps arriving is never cut off, however long it takes.
func New(timeout time.Duration) *Downloader {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout

	return &Downloader{
		http:        &http.Client{Transport: transport},
		readTimeout: timeout,
	}
}

// Download writes the body of location to dst, creating parent directories.
// It returns the number of bytes written. A partially written dst is removed
// on failure.
func (d *Downloader) Download(ctx context.Context, location, dst string) (int64, error) {
	logger := logging.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, location, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDownload, location, err)
	}

	logger.Info("downloading", "url", location)

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDownload, location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s: status %d", ErrDownload, location, resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}

	body := newIdleReader(resp.Body, d.readTimeout, func() { cancel(errIdle) })
	n, copyErr := io.Copy(f, body)
	body.stop()
	if copyErr != nil && errors.Is(context.Cause(reqCtx), errIdle) {
		copyErr = errIdle
	}
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("%w: %s: %v", ErrDownload, location, copyErr)
	}

	logger.Debug("downloaded", "file", filepath.Base(dst), "bytes", n)
	return n, nil
}

// idleReader calls onIdle when no Read returns within timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, onIdle)
	}
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if ir.timer != nil && n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

func (ir *idleReader) stop() {
	if ir.timer != nil {
		ir.timer.Stop()
	}
}

// FileName derives a safe local file name from a resource location.
// fallback is used when the location has no usable last path segment.
func FileName(location, fallback string) string {
	p := location
	if u, err := url.Parse(location); err == nil {
		if unescaped, err := url.PathUnescape(u.Path); err == nil {
			p = unescaped
		} else {
			p = u.Path
		}
	}

	name := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return fallback
	}
	return name
}
