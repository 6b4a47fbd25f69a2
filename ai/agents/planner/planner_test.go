package planner

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/mathsense/ai/rag"
)

// MockRetriever implements Retriever for testing.
type MockRetriever struct {
	context string
}

func (m *MockRetriever) BuildContext(_ context.Context, _, _ string, _, _ int) string {
	return m.context
}

// MockVerifier implements Verifier for testing.
type MockVerifier struct {
	calls  atomic.Int64
	result string
	err    error
	block  chan struct{} // when set, Evaluate waits for ctx or close
}

func (m *MockVerifier) Name() string { return "mock" }

func (m *MockVerifier) Evaluate(ctx context.Context, _ string) (string, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-m.block:
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.result, nil
}

func TestPlanWithoutVerification(t *testing.T) {
	verifier := &MockVerifier{result: "ok"}
	p := New(&MockRetriever{}, verifier, nil)

	plan, err := p.Plan(context.Background(), "Solve x+2=5 for x.", "", false)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Nil(t, plan.Steps[0].Verification)
	assert.Equal(t, int64(0), verifier.calls.Load(), "verifier must never be invoked with verify=false")
}

func TestPlanPrependsConsultStep(t *testing.T) {
	retriever := &MockRetriever{context: "Relevant documents (RAG):\n[GLOBAL] pythag: a^2 + b^2 = c^2"}
	p := New(retriever, nil, nil)

	plan, err := p.Plan(context.Background(), "Find the hypotenuse.", "", false)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.True(t, strings.HasPrefix(plan.Steps[0].Text, "Consult relevant formulas and proofs: "))
	assert.NotContains(t, plan.Steps[0].Text, "\n")
	assert.Contains(t, plan.Steps[0].Text, " | ")
	assert.Equal(t, 0, plan.Steps[0].Index)
	assert.Equal(t, "Find the hypotenuse.", plan.Steps[1].Text)
}

func TestPlanVerificationSuccessAndFailure(t *testing.T) {
	p := New(&MockRetriever{}, &MockVerifier{result: "3"}, nil)
	plan, err := p.Plan(context.Background(), "Compute 1+2.", "", true)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.NotNil(t, plan.Steps[0].Verification)
	assert.Equal(t, "mock", plan.Steps[0].Verification.Tool)
	assert.Equal(t, "3", plan.Steps[0].Verification.Result)
	assert.Empty(t, plan.Steps[0].Verification.Err)

	p = New(&MockRetriever{}, &MockVerifier{err: errors.New("tool unavailable")}, nil)
	plan, err = p.Plan(context.Background(), "Compute 1+2. Compute 2+3.", "", true)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	for _, step := range plan.Steps {
		require.NotNil(t, step.Verification, "a failing tool must not abort the remaining steps")
		assert.Equal(t, "tool unavailable", step.Verification.Err)
		assert.Empty(t, step.Verification.Result)
	}
}

func TestNewDoesNotMutateCallerConfig(t *testing.T) {
	cfg := &Config{TopKGlobal: 2, TopKUser: 2}
	New(&MockRetriever{}, &MockVerifier{result: "1"}, cfg)

	// Defaults go into the planner's own copy only.
	assert.Equal(t, time.Duration(0), cfg.VerifyTimeout)
	assert.Equal(t, int64(0), cfg.MaxConcurrentVerifications)
}

func TestPlanVerifyWithoutVerifierConfigured(t *testing.T) {
	p := New(&MockRetriever{}, nil, nil)
	plan, err := p.Plan(context.Background(), "Compute 1+2.", "", true)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Nil(t, plan.Steps[0].Verification)
}

func TestPlanCancellationKeepsCompletedWork(t *testing.T) {
	verifier := &MockVerifier{result: "ok", block: make(chan struct{})}
	p := New(&MockRetriever{}, verifier, &Config{
		VerifyTimeout:              time.Second,
		MaxConcurrentVerifications: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var plan *Plan
	var planErr error
	go func() {
		defer close(done)
		plan, planErr = p.Plan(ctx, "Compute 1+1. Compute 2+2. Compute 3+3.", "", true)
	}()

	// Let the first verification start, then cancel while it blocks.
	for verifier.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	require.ErrorIs(t, planErr, context.Canceled)
	require.NotNil(t, plan, "partial plan must survive cancellation")
	assert.Len(t, plan.Steps, 3)
	assert.LessOrEqual(t, verifier.calls.Load(), int64(2), "no further calls after cancellation")
}

func TestPlanDuration(t *testing.T) {
	p := New(&MockRetriever{}, nil, nil)
	plan, err := p.Plan(context.Background(), "Prove the theorem", "", false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, plan.Duration, 0.0)
}

func TestPlanEndToEndWithRetrievalManager(t *testing.T) {
	mgr := rag.NewManager(nil, nil)
	mgr.AddGlobalDocument(context.Background(), "pythag", "a^2+b^2=c^2", time.Time{})

	p := New(mgr, nil, nil)
	plan, err := p.Plan(context.Background(), "Find the hypotenuse of a right triangle with legs 3 and 4.", "", false)
	require.NoError(t, err)

	assert.NotEmpty(t, plan.RAGContext, "heuristic word overlap should produce context")
	require.NotEmpty(t, plan.Steps)
	assert.True(t, strings.HasPrefix(plan.Steps[0].Text, "Consult relevant formulas and proofs:"))
}
