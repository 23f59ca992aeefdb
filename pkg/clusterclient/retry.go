// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package clusterclient

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/jpillora/backoff"
)

// RetryPolicy shapes the delay between failed attempts.
type RetryPolicy struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

// DefaultRetryPolicy waits one second after the first failure and
// doubles up to ten seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Min:    time.Second,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

func (p RetryPolicy) backoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    p.Min,
		Max:    p.Max,
		Factor: p.Factor,
		Jitter: p.Jitter,
	}
}

type attemptFunc func(ctx context.Context) ([]byte, error)

// withRetries runs fn up to attempts times. Each attempt gets its own
// deadline derived from timeout; an attempt hitting that deadline is a
// failed attempt. Cancellation of ctx ends the loop immediately. Not
// found errors are final.
func withRetries(ctx context.Context, log logr.Logger, verb, target string, attempts int,
	timeout time.Duration, policy RetryPolicy, fn attemptFunc) ([]byte, error) {
	attempts = attemptsOrDefault(attempts)
	b := policy.backoff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := runAttempt(ctx, verb, timeout, fn)
		if err == nil {
			callsTotal.WithLabelValues(verb, "success").Inc()
			return out, nil
		}
		lastErr = err

		if IsNotFound(err) {
			callsTotal.WithLabelValues(verb, "not_found").Inc()
			return nil, err
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		delay := b.Duration()
		log.V(4).Info("Retrying cluster call", "verb", verb, "target", target,
			"attempt", attempt, "delay", delay, "error", ErrorText(err))
		retriesTotal.WithLabelValues(verb).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			callsTotal.WithLabelValues(verb, "failure").Inc()
			return nil, lastErr
		case <-timer.C:
		}
	}
	callsTotal.WithLabelValues(verb, "failure").Inc()
	return nil, lastErr
}

func runAttempt(ctx context.Context, verb string, timeout time.Duration, fn attemptFunc) ([]byte, error) {
	start := time.Now()
	defer func() {
		callDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
	}()

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(attemptCtx)
}
