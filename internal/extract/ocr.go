package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultOCRTimeout = 90 * time.Second

// OCR recognizes text in images by running the tesseract CLI.
// At most Concurrency recognitions run at once.
type OCR struct {
	binary   string
	language string
	timeout  time.Duration
	sem      *semaphore.Weighted

	run func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

// NewOCR constructs an OCR extractor. Empty binary means "tesseract" on PATH.
func NewOCR(binary string, concurrency int64, timeout time.Duration) *OCR {
	if strings.TrimSpace(binary) == "" {
		binary = "tesseract"
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	return &OCR{
		binary:   binary,
		language: "eng",
		timeout:  timeout,
		sem:      semaphore.NewWeighted(concurrency),
		run:      runCommand,
	}
}

func (o *OCR) Extract(ctx context.Context, path string, mediaType string) (string, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("ocr queue: %w", err)
	}
	defer o.sem.Release(1)

	localCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	stdout, stderr, err := o.run(localCtx, o.binary, path, "stdout", "-l", o.language)
	if err != nil {
		if errors.Is(localCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("ocr timed out after %s: %w", o.timeout, context.DeadlineExceeded)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("ocr binary %q unavailable: %w", o.binary, err)
		}
		return "", fmt.Errorf("ocr failed: %v: %s", err, strings.TrimSpace(string(stderr)))
	}
	return strings.TrimSpace(string(stdout)), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
