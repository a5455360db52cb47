package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"study-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base  Client
	delay time.Duration
}

// WithRetry wraps base so one transient failure is retried after a short pause.
func WithRetry(base Client) Client {
	if base == nil {
		return nil
	}
	return retryingClient{base: base, delay: retryBaseDelay}
}

func (r retryingClient) GenerateQuestions(ctx context.Context, input GenerateInput) (json.RawMessage, error) {
	resp, err := r.base.GenerateQuestions(ctx, input)
	if err == nil || !ShouldRetry(err) || ctx.Err() != nil {
		return resp, err
	}

	telemetry.Info("llm.retry", map[string]any{
		"attempt": 1,
		"error":   sanitizeError(err),
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return r.base.GenerateQuestions(ctx, input)
}

// ShouldRetry reports whether err looks transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotImplemented) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") || strings.Contains(msg, "overloaded") {
		return true
	}
	if strings.Contains(msg, "http status 429") || strings.Contains(msg, "rate_limit") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof") {
		return true
	}
	return false
}

func sanitizeError(err error) string {
	msg := strings.TrimSpace(err.Error())
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
