// Package planner turns a math problem statement into an ordered,
// retrieval-informed and optionally tool-verified plan.
package planner

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Retriever supplies retrieval context for a problem statement.
// Implementation: rag.Manager.
type Retriever interface {
	BuildContext(ctx context.Context, query, userID string, kGlobal, kUser int) string
}

// Verifier evaluates a step expression through an external or local math
// tool. Implementations: tools.MathJSVerifier, tools.WolframVerifier,
// tools.CELVerifier.
type Verifier interface {
	Name() string
	Evaluate(ctx context.Context, expression string) (string, error)
}

// Verification records the outcome of a single tool call. Exactly one of
// Result and Err is set.
type Verification struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Step is one ordered unit of a plan.
type Step struct {
	Index        int           `json:"index"`
	Text         string        `json:"step"`
	Verification *Verification `json:"verification,omitempty"`
}

// Plan is the structured planner output.
type Plan struct {
	Problem    string  `json:"problem"`
	RAGContext string  `json:"rag_context"`
	Steps      []Step  `json:"plan"`
	Duration   float64 `json:"duration"`
}

// Config holds planner configuration.
type Config struct {
	// VerifyTimeout bounds each individual verification call.
	VerifyTimeout time.Duration
	// MaxConcurrentVerifications caps outstanding verification calls so a
	// long plan cannot fan out without bound.
	MaxConcurrentVerifications int64
	// TopKGlobal and TopKUser size the retrieval context.
	TopKGlobal int
	TopKUser   int
}

// DefaultConfig returns the default planner configuration.
func DefaultConfig() *Config {
	return &Config{
		VerifyTimeout:              15 * time.Second,
		MaxConcurrentVerifications: 4,
		TopKGlobal:                 3,
		TopKUser:                   3,
	}
}

// Planner holds references to its collaborators; it keeps no state across
// Plan calls.
type Planner struct {
	retriever Retriever
	verifier  Verifier
	config    *Config
	sem       *semaphore.Weighted
}

// New creates a planner. verifier may be nil, in which case verification is
// skipped even when requested.
func New(retriever Retriever, verifier Verifier, config *Config) *Planner {
	if config == nil {
		config = DefaultConfig()
	}
	// Defaults are filled on a private copy; the caller's config is never
	// written to.
	cfg := *config
	if cfg.MaxConcurrentVerifications <= 0 {
		cfg.MaxConcurrentVerifications = DefaultConfig().MaxConcurrentVerifications
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = DefaultConfig().VerifyTimeout
	}
	return &Planner{
		retriever: retriever,
		verifier:  verifier,
		config:    &cfg,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrentVerifications),
	}
}

// Plan decomposes problem into steps, prepends the retrieval context as a
// synthetic first step when present, and optionally verifies every step
// through the configured verifier.
//
// Per-step verification failures never abort the plan; they are captured on
// the step itself. When ctx is cancelled mid-plan, no further verification
// calls are issued and the partially verified plan is returned together with
// the context error, so completed work is never lost.
func (p *Planner) Plan(ctx context.Context, problem, userID string, verify bool) (*Plan, error) {
	start := time.Now()

	ragContext := p.retriever.BuildContext(ctx, problem, userID, p.config.TopKGlobal, p.config.TopKUser)

	texts := Decompose(problem)
	if ragContext != "" {
		consult := "Consult relevant formulas and proofs: " + strings.ReplaceAll(ragContext, "\n", " | ")
		texts = append([]string{consult}, texts...)
	}

	steps := make([]Step, len(texts))
	for i, text := range texts {
		steps[i] = Step{Index: i, Text: text}
	}

	var err error
	if verify {
		if p.verifier == nil {
			slog.Warn("verification requested but no verifier configured, skipping")
		} else {
			err = p.verifySteps(ctx, steps)
		}
	}

	return &Plan{
		Problem:    problem,
		RAGContext: ragContext,
		Steps:      steps,
		Duration:   time.Since(start).Seconds(),
	}, err
}

// verifySteps runs one verification call per step with bounded concurrency.
// It returns the context error when cancellation stopped dispatch early.
func (p *Planner) verifySteps(ctx context.Context, steps []Step) error {
	var wg sync.WaitGroup
	for i := range steps {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Cancelled: keep the verifications already in flight.
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func(step *Step) {
			defer wg.Done()
			defer p.sem.Release(1)
			step.Verification = p.verifyStep(ctx, step.Text)
		}(&steps[i])
	}
	wg.Wait()
	return nil
}

// verifyStep issues one bounded tool call and captures the outcome.
func (p *Planner) verifyStep(ctx context.Context, text string) *Verification {
	callCtx, cancel := context.WithTimeout(ctx, p.config.VerifyTimeout)
	defer cancel()

	verification := &Verification{Tool: p.verifier.Name()}
	result, err := p.verifier.Evaluate(callCtx, text)
	if err != nil {
		verification.Err = err.Error()
		return verification
	}
	verification.Result = result
	return verification
}
