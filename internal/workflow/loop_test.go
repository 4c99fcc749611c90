package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptedTest(scores []int) TestFunc {
	return func(ctx context.Context, wctx Context, iteration int) (*TestResult, error) {
		return &TestResult{Score: scores[iteration-1], Failures: []string{"something broke"}}, nil
	}
}

func noopFix() FixFunc {
	return func(ctx context.Context, wctx Context, failures *TestResult) (*FixResult, error) {
		return &FixResult{Summary: "patched"}, nil
	}
}

func TestRunConvergesWithinBudget(t *testing.T) {
	res, err := Run(context.Background(), Context{Repo: "acme/app", Branch: "main"},
		scriptedTest([]int{40, 60, 96, 0, 0}), noopFix(),
		Options{MaxIterations: 5, PassThreshold: 95})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Len(t, res.Iterations, 3)
	assert.Equal(t, 96, res.FinalScore)
	assert.Equal(t, 3, res.TestPhases())
	assert.Equal(t, 2, res.FixPhases())
	assert.Nil(t, res.Iterations[2].Fix, "no fix after the passing test")
}

func TestRunExhaustsBudget(t *testing.T) {
	res, err := Run(context.Background(), Context{},
		scriptedTest([]int{0, 0}), noopFix(),
		Options{MaxIterations: 2, PassThreshold: 95})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.TestPhases())
	assert.Equal(t, 1, res.FixPhases(), "no fix after the final test")
	assert.Equal(t, 0, res.FinalScore)
	assert.Contains(t, res.Summary, "did not reach threshold")
}

func TestRunFirstTestPasses(t *testing.T) {
	fixCalled := false
	fix := func(ctx context.Context, wctx Context, failures *TestResult) (*FixResult, error) {
		fixCalled = true
		return &FixResult{}, nil
	}

	res, err := Run(context.Background(), Context{},
		scriptedTest([]int{100}), fix,
		Options{MaxIterations: 5, PassThreshold: 95})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Len(t, res.Iterations, 1)
	assert.False(t, fixCalled)
}

func TestRunFixErrorConsumesIteration(t *testing.T) {
	fix := func(ctx context.Context, wctx Context, failures *TestResult) (*FixResult, error) {
		return nil, fmt.Errorf("agent unavailable")
	}

	res, err := Run(context.Background(), Context{},
		scriptedTest([]int{10, 20, 30}), fix,
		Options{MaxIterations: 3, PassThreshold: 95})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.TestPhases())
	assert.Equal(t, 0, res.FixPhases())
}

func TestRunTestErrorPropagates(t *testing.T) {
	boom := func(ctx context.Context, wctx Context, iteration int) (*TestResult, error) {
		return nil, fmt.Errorf("test harness crashed")
	}

	res, err := Run(context.Background(), Context{}, boom, noopFix(),
		Options{MaxIterations: 3, PassThreshold: 95})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestRunValidation(t *testing.T) {
	_, err := Run(context.Background(), Context{}, scriptedTest([]int{0}), noopFix(),
		Options{MaxIterations: 0, PassThreshold: 95})
	assert.Error(t, err)

	_, err = Run(context.Background(), Context{}, scriptedTest([]int{0}), noopFix(),
		Options{MaxIterations: 1, PassThreshold: 101})
	assert.Error(t, err)

	_, err = Run(context.Background(), Context{}, nil, noopFix(),
		Options{MaxIterations: 1, PassThreshold: 50})
	assert.Error(t, err)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Context{}, scriptedTest([]int{0, 0, 0}), noopFix(),
		Options{MaxIterations: 3, PassThreshold: 95})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Iterations)
}
