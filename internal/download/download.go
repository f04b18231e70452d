package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	defaultRetries = 3
	retryBackoff   = 300 * time.Millisecond
	userAgent      = "voxnote/1"
)

type Options struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	Retries        int
	// NoProgress suppresses the terminal bar; Progress callbacks still fire.
	NoProgress bool
	// Progress receives whole percentages, never decreasing across retries.
	Progress   func(percent int)
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// StatusError is returned for non-200 responses. Client errors other than
// 408 and 429 are not retried.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

func (e *StatusError) retryable() bool {
	if e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests {
		return true
	}
	return e.Code < 400 || e.Code >= 500
}

// DownloadFile fetches opts.URL into opts.Destination through a ".part"
// file. The destination only appears once the checksum matched.
func DownloadFile(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return errors.New("download URL is required")
	}
	if opts.Destination == "" {
		return errors.New("destination path is required")
	}
	opts = opts.withDefaults()

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	reporter := newPercentReporter(opts.Progress)
	expected := normalizeChecksum(opts.ExpectedSHA256)

	var err error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("retrying download",
				zap.Int("attempt", attempt),
				zap.Int("max", opts.Retries),
				zap.String("url", opts.URL),
				zap.Error(err),
			)
			if waitErr := sleepCtx(ctx, time.Duration(attempt)*retryBackoff); waitErr != nil {
				return waitErr
			}
		}

		err = fetch(ctx, opts, expected, reporter)
		if err == nil {
			reporter.report(100)
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = defaultRetries
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalizeChecksum(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := normalizeChecksum(expectedSHA256)
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	return compareChecksum(expected, h)
}

func compareChecksum(expected string, h hash.Hash) error {
	if actual := hex.EncodeToString(h.Sum(nil)); expected != "" && actual != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// partFile is the in-progress download next to its final destination.
type partFile struct {
	*os.File
	destination string
}

func createPart(destination string) (*partFile, error) {
	path := destination + ".part"
	_ = os.Remove(path)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &partFile{File: f, destination: destination}, nil
}

func (p *partFile) commit() error {
	if err := p.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(p.Name(), p.destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}
	return nil
}

func (p *partFile) abort() {
	_ = p.Close()
	_ = os.Remove(p.Name())
}

func fetch(ctx context.Context, opts Options, expected string, reporter *percentReporter) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}

	part, err := createPart(opts.Destination)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			part.abort()
		}
	}()

	h := sha256.New()
	writers := []io.Writer{part, h, reporter.track(resp.ContentLength)}
	bar := newBar(opts.NoProgress, resp.ContentLength)
	if bar != nil {
		writers = append(writers, bar)
	}

	_, err = io.Copy(io.MultiWriter(writers...), resp.Body)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("download body: %w", err)
	}

	if err := compareChecksum(expected, h); err != nil {
		return err
	}
	if err := part.commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func newBar(noProgress bool, contentLength int64) *progressbar.ProgressBar {
	if !shouldRenderProgress(noProgress, contentLength) {
		return nil
	}
	return progressbar.NewOptions64(
		contentLength,
		progressbar.OptionSetDescription("downloading model"),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func shouldRenderProgress(noProgress bool, contentLength int64) bool {
	if noProgress || contentLength <= 0 {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
