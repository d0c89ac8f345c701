package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// Outcome classifies one upstream invocation.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeNetworkError  Outcome = "network_error"
	OutcomeTimeout       Outcome = "timeout"
)

// InvocationResult is the tagged outcome of a single call. Exactly one of
// Payload, (StatusCode, Body) or Cause is meaningful, selected by Outcome.
type InvocationResult struct {
	Outcome Outcome

	// Payload is the decoded 2xx response. Malformed JSON decodes to an
	// empty object rather than failing the exchange.
	Payload map[string]any

	// StatusCode and Body capture a non-2xx response for diagnostics.
	StatusCode int
	Body       string

	// Cause is the connection-level failure.
	Cause error
}

// RetryPolicy is a pluggable attempt schedule. The shipped default performs
// exactly one attempt; retries were deliberately left out of the baseline.
type RetryPolicy interface {
	// ShouldRetry reports whether another attempt should follow the given
	// result, and how long to wait first. attempt starts at 1.
	ShouldRetry(attempt int, result InvocationResult) (time.Duration, bool)
}

type singleAttempt struct{}

func (singleAttempt) ShouldRetry(int, InvocationResult) (time.Duration, bool) {
	return 0, false
}

// SingleAttempt never retries.
func SingleAttempt() RetryPolicy {
	return singleAttempt{}
}

type InvokerConfig struct {
	// Timeout is the per-invocation deadline. Defaults to 30s.
	Timeout time.Duration
	// MaxInflight caps simultaneous calls across all tenants. Zero means
	// unbounded.
	MaxInflight int
	// MaxResponseBytes bounds response body reads. Defaults to 1 MiB.
	MaxResponseBytes int64
	// Retry defaults to SingleAttempt.
	Retry RetryPolicy
	// Client defaults to a fresh http.Client. The per-call deadline comes
	// from the request context, which cancels the in-flight connection.
	Client *http.Client
}

type Invoker struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	retry    RetryPolicy
	sem      chan struct{}
}

func NewInvoker(config InvokerConfig) *Invoker {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = 1 << 20
	}
	if config.Retry == nil {
		config.Retry = SingleAttempt()
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	inv := &Invoker{
		client:   config.Client,
		timeout:  config.Timeout,
		maxBytes: config.MaxResponseBytes,
		retry:    config.Retry,
	}
	if config.MaxInflight > 0 {
		inv.sem = make(chan struct{}, config.MaxInflight)
	}
	return inv
}

// Timeout returns the per-invocation deadline.
func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

// Invoke performs the call under the configured deadline and classifies the
// outcome. It never returns an error; every failure mode is a result tag.
func (i *Invoker) Invoke(ctx context.Context, req Request) InvocationResult {
	if i.sem != nil {
		select {
		case i.sem <- struct{}{}:
			defer func() { <-i.sem }()
		case <-ctx.Done():
			return InvocationResult{Outcome: OutcomeNetworkError, Cause: ctx.Err()}
		}
	}

	attempt := 1
	for {
		result := i.invokeOnce(ctx, req)
		if result.Outcome == OutcomeSuccess {
			return result
		}
		wait, retry := i.retry.ShouldRetry(attempt, result)
		if !retry {
			return result
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return result
		}
		attempt++
	}
}

func (i *Invoker) invokeOnce(ctx context.Context, req Request) InvocationResult {
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	payload, err := json.Marshal(req.Body)
	if err != nil {
		return InvocationResult{Outcome: OutcomeNetworkError, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, req.URL, bytes.NewReader(payload))
	if err != nil {
		return InvocationResult{Outcome: OutcomeNetworkError, Cause: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := i.client.Do(httpReq)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return InvocationResult{Outcome: OutcomeTimeout, Cause: err}
		}
		return InvocationResult{Outcome: OutcomeNetworkError, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBytes))
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return InvocationResult{Outcome: OutcomeTimeout, Cause: err}
		}
		return InvocationResult{Outcome: OutcomeNetworkError, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return InvocationResult{
			Outcome:    OutcomeUpstreamError,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	parsed := map[string]any{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		// best-effort: an unparseable 2xx body becomes an empty object
		parsed = map[string]any{}
	}
	return InvocationResult{Outcome: OutcomeSuccess, Payload: parsed}
}
