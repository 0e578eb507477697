/*-------------------------------------------------------------------------
 *
 * retry.go
 *    Bounded exponential retry for reasoning backend calls
 *
 * Tool calls are never routed through here; a failed tool call surfaces
 * once as error content to avoid duplicate side effects.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/reliability/retry.go
 *
 *-------------------------------------------------------------------------
 */

package reliability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/neurondb/NeuronBoard/internal/metrics"
)

/* RetryPolicy bounds retries of a transient operation */
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

/* DefaultRetryPolicy returns the policy used for LLM calls */
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsed:      2 * time.Minute,
	}
}

var retryableMarkers = []string{
	"connection",
	"timeout",
	"rate_limit",
	"rate limit",
	"overloaded",
	"temporary",
	"unavailable",
	"status code: 429",
	"status code: 5",
	"eof",
}

/* IsRetryable classifies an error as transient */
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

/* Retry runs fn under the policy; non-retryable errors stop immediately */
func Retry[T any](ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithNotify(func(err error, delay time.Duration) {
			metrics.InfoWithContext(ctx, "Retrying after error", map[string]interface{}{
				"operation": op,
				"delay_ms":  delay.Milliseconds(),
				"error":     err.Error(),
			})
		}),
	}
	if policy.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(uint(policy.MaxAttempts)))
	}
	if policy.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(policy.MaxElapsed))
	}

	return backoff.Retry(ctx, func() (T, error) {
		res, err := fn(ctx)
		if err != nil && !IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, opts...)
}
