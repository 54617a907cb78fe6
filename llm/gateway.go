package llm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// Gateway wraps a Provider with the cross-cutting behavior spec §4.2
// requires of every LLM call: a process-wide token-bucket rate limiter,
// exponential-backoff retry on transient errors, JSON-mode verification, and
// cost estimation. The gateway sets no timeout of its own: a call is bounded
// only by the deadline of the ctx passed to Generate.
type Gateway struct {
	provider   Provider
	limiter    *RateLimiter
	pricing    PriceTable
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        telemetry.Logger
	tracer     telemetry.Tracer
	metrics    telemetry.Metrics

	budgetMu    sync.Mutex
	spendDay    string
	spentMicros int64
}

// Options configures a Gateway.
type Options struct {
	Provider      Provider
	RatePerSecond float64
	RateBurst     int
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Pricing       PriceTable
	Logger        telemetry.Logger
	Tracer        telemetry.Tracer
	Metrics       telemetry.Metrics
}

// New constructs a Gateway. Logger/Tracer/Metrics default to no-op
// implementations when omitted.
func New(opts Options) *Gateway {
	log, tracer, metrics := opts.Logger, opts.Tracer, opts.Metrics
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &Gateway{
		provider:   opts.Provider,
		limiter:    NewRateLimiter(opts.RatePerSecond, opts.RateBurst),
		pricing:    opts.Pricing,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		log:        log,
		tracer:     tracer,
		metrics:    metrics,
	}
}

// Generate performs one text (or, with req.JSONMode, JSON) generation call,
// honoring ctx's deadline as the caller's timeout (spec §4.2). A JSONMode
// request whose response text fails to parse as JSON fails with
// errs.KindProviderError, never silently passed through.
func (g *Gateway) Generate(ctx context.Context, req Request) (Response, Amount, error) {
	ctx, span := g.tracer.StartSpan(ctx, "llm.generate", map[string]string{
		"model":     req.Model,
		"provider":  g.provider.Name(),
		"json_mode": boolString(req.JSONMode),
	})
	defer span.End()

	start := time.Now()
	resp, err := g.generateWithRetry(ctx, req)
	g.metrics.RecordDuration(ctx, "llm_generate_seconds", time.Since(start).Seconds(), map[string]string{
		"provider": g.provider.Name(),
	})
	if err != nil {
		span.SetError(err)
		return Response{}, 0, err
	}

	if req.JSONMode {
		var probe any
		if jsonErr := json.Unmarshal([]byte(resp.Text), &probe); jsonErr != nil {
			err := errs.Wrap(errs.KindProviderError, jsonErr, "llm: provider json_mode response did not parse as JSON")
			span.SetError(err)
			return Response{}, 0, err
		}
	}

	cost := EstimateCost(g.pricing, req.Model, resp.Usage)
	g.recordSpend(cost)
	g.metrics.IncrCounter(ctx, "llm_tokens_total", resp.Usage.InputTokens+resp.Usage.OutputTokens, map[string]string{
		"provider": g.provider.Name(),
	})
	return resp, cost, nil
}

// recordSpend accumulates cost into the gateway's running daily total,
// resetting the accumulator when the UTC calendar day rolls over. This
// backs the resource guard's remaining-daily-budget check (spec §5); the
// gateway is the only place that sees every call's estimated cost, so it
// tracks the running total itself rather than relying on callers to do so.
func (g *Gateway) recordSpend(cost Amount) {
	g.budgetMu.Lock()
	defer g.budgetMu.Unlock()
	today := time.Now().UTC().Format("2006-01-02")
	if g.spendDay != today {
		g.spendDay = today
		g.spentMicros = 0
	}
	g.spentMicros += int64(cost)
}

// DailySpend returns the estimated cost accrued so far today (UTC).
func (g *Gateway) DailySpend() Amount {
	g.budgetMu.Lock()
	defer g.budgetMu.Unlock()
	today := time.Now().UTC().Format("2006-01-02")
	if g.spendDay != today {
		return 0
	}
	return Amount(g.spentMicros)
}

func (g *Gateway) generateWithRetry(ctx context.Context, req Request) (Response, error) {
	delay := g.baseDelay
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
		resp, err := g.provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		kind := errs.KindOf(err)
		if !kind.Retryable() {
			return Response{}, err
		}
		if attempt == g.maxRetries {
			break
		}
		g.log.Warn(ctx, "llm: retrying after transient error", "attempt", attempt, "kind", kind, "delay_ms", delay.Milliseconds())
		select {
		case <-ctx.Done():
			return Response{}, errs.Wrap(errs.KindTimeout, ctx.Err(), "llm: context cancelled during retry backoff")
		case <-time.After(delay):
		}
		delay *= 2
		if delay > g.maxDelay {
			delay = g.maxDelay
		}
	}
	return Response{}, lastErr
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
