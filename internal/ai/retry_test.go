package ai

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummarizer() *Summarizer {
	return &Summarizer{
		retry: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
			Timeout:           time.Second,
		},
		log: slog.Default(),
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	s := testSummarizer()
	calls := 0
	err := s.retryWithBackoff(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetriableError(t *testing.T) {
	s := testSummarizer()
	calls := 0
	err := s.retryWithBackoff(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("401 invalid api key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	s := testSummarizer()
	calls := 0
	err := s.retryWithBackoff(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("rate limit exceeded")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestIsRetriableError(t *testing.T) {
	cases := []struct {
		err       error
		retriable bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("429 too many requests"), true},
		{fmt.Errorf("connection refused"), true},
		{fmt.Errorf("502 bad gateway"), true},
		{fmt.Errorf("400 bad request"), false},
		{fmt.Errorf("invalid model name"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.retriable, isRetriableError(tc.err), "error: %v", tc.err)
	}
}

func TestNilSummarizerFallsBack(t *testing.T) {
	var s *Summarizer
	got := s.Summarize(context.Background(), "some output", "derived summary")
	assert.Equal(t, "derived summary", got)
}

func TestNewSummarizerWithoutKey(t *testing.T) {
	assert.Nil(t, NewSummarizer("", "", nil))
}
