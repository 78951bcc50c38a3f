package objectstore

import (
	"context"
	"errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	catalogerrors "github.com/icedb-go/icedb/pkg/errors"
)

// RetryConfig bounds the retry policy applied to uploads (spec.md §5/§7:
// "bounded, e.g. up to 3 attempts with 300ms * attempt"). Log-object Put
// is never wrapped in this retry helper — the core calls it once and
// surfaces the error to the caller, per spec.md §7.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig matches spec.md §5's example numbers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 300 * time.Millisecond}
}

// retrying wraps an upload-shaped operation with linear backoff on
// transient errors (delay = base * attempt number). Terminal errors
// (isTransient returns false) are never retried.
func retrying(ctx context.Context, cfg RetryConfig, logger *logrus.Logger, operation, key string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return catalogerrors.ObjectTerminal(operation, key, err)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.BaseDelay * time.Duration(attempt)
		logger.WithFields(logrus.Fields{
			"operation": operation,
			"key":       key,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("retrying transient object store error")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return catalogerrors.ObjectTransient(operation, key, lastErr)
}

// isTransient classifies an S3/smithy API error as retriable (5xx, 429)
// versus terminal (4xx, auth, not-found), per spec.md §7's taxonomy.
func isTransient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InternalError", "ServiceUnavailable", "SlowDown", "RequestTimeout", "Throttling", "TooManyRequests":
			return true
		default:
			return false
		}
	}
	// Unrecognized error shapes (e.g. network-level failures that carry
	// no S3 API error code) are treated as transient so a single flaky
	// syscall doesn't fail an otherwise-healthy operation outright.
	return true
}
