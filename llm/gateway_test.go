package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/errs"
)

func TestGenerateReturnsProviderResponseAndCost(t *testing.T) {
	provider := NewMockProvider("mock", Response{Text: "hello", Usage: TokenUsage{InputTokens: 10, OutputTokens: 5}})
	g := New(Options{
		Provider:      provider,
		RatePerSecond: 100,
		RateBurst:     10,
		Pricing:       PriceTable{"m1": {InputMicrosPerToken: 2, OutputMicrosPerToken: 3}},
	})

	resp, cost, err := g.Generate(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}, Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, Amount(10*2+5*3), cost)
}

func TestGenerateJSONModeRejectsNonJSONResponse(t *testing.T) {
	provider := NewMockProvider("mock", Response{Text: "not json"})
	g := New(Options{Provider: provider, RatePerSecond: 100, RateBurst: 10})

	_, _, err := g.Generate(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}, JSONMode: true})
	require.Error(t, err)
	assert.Equal(t, errs.KindProviderError, errs.KindOf(err))
}

func TestGenerateRetriesRetryableErrorThenSucceeds(t *testing.T) {
	provider := &MockProvider{
		Responses: []Response{{Text: "ok"}},
	}
	failThenSucceed := &failNTimesProvider{inner: provider, failures: 2}

	g := New(Options{
		Provider:      failThenSucceed,
		RatePerSecond: 100,
		RateBurst:     10,
		MaxRetries:    3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
	})

	resp, _, err := g.Generate(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int64(3), failThenSucceed.calls)
}

func TestGenerateDoesNotRetryNonRetryableError(t *testing.T) {
	provider := &MockProvider{Err: errs.New(errs.KindInvalidRequest, "bad request")}
	g := New(Options{Provider: provider, RatePerSecond: 100, RateBurst: 10, MaxRetries: 3})

	_, _, err := g.Generate(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}})
	require.Error(t, err)
	assert.Equal(t, int64(1), provider.Calls())
}

// failNTimesProvider wraps a Provider and fails with a retryable error for
// the first `failures` calls before delegating to inner.
type failNTimesProvider struct {
	inner    Provider
	failures int
	calls    int64
}

func (f *failNTimesProvider) Name() string { return "flaky" }

func (f *failNTimesProvider) Generate(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if int(f.calls) <= f.failures {
		return Response{}, errs.New(errs.KindNetworkError, "transient")
	}
	return f.inner.Generate(ctx, req)
}

// TestRateLimiterThrottlesBurstExcess exercises S4: with a bucket of
// capacity 2/sec, 5 back-to-back calls must take at least ceil((5-2)/2)
// seconds of wall clock, and none may fail given a generous per-call timeout.
func TestRateLimiterThrottlesBurstExcess(t *testing.T) {
	provider := NewMockProvider("mock", Response{Text: "ok"})
	g := New(Options{Provider: provider, RatePerSecond: 2, RateBurst: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 5; i++ {
		_, _, err := g.Generate(ctx, Request{Messages: []Message{NewUserMessage("hi")}})
		require.NoError(t, err)
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 1500*time.Millisecond)
}

func TestGenerateJSONModeParseFailureIsProviderError(t *testing.T) {
	provider := NewMockProvider("mock", Response{Text: "not json"})
	g := New(Options{Provider: provider, RatePerSecond: 100, RateBurst: 10})

	_, _, err := g.Generate(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}, JSONMode: true})
	require.Error(t, err)
	assert.Equal(t, errs.KindProviderError, errs.KindOf(err))
}

func TestDailySpendAccumulatesAcrossCalls(t *testing.T) {
	provider := NewMockProvider("mock", Response{Text: "ok", Usage: TokenUsage{InputTokens: 10, OutputTokens: 10}})
	g := New(Options{
		Provider:      provider,
		RatePerSecond: 100,
		RateBurst:     10,
		Pricing:       PriceTable{"m1": {InputMicrosPerToken: 1, OutputMicrosPerToken: 1}},
	})

	assert.Equal(t, Amount(0), g.DailySpend())
	for i := 0; i < 3; i++ {
		_, _, err := g.Generate(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}, Model: "m1"})
		require.NoError(t, err)
	}
	assert.Equal(t, Amount(60), g.DailySpend())
}

func TestAmountFromCentsConversion(t *testing.T) {
	assert.Equal(t, Amount(10_000), AmountFromCents(1))
	assert.Equal(t, Amount(100_000_000), AmountFromCents(10_000))
}

func TestRateLimiterWaitFailsOnExpiredContext(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	// Drain the single burst token, then force the next wait past the deadline.
	require.NoError(t, limiter.Wait(context.Background()))
	time.Sleep(2 * time.Millisecond)

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
}
