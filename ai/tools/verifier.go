// Package tools provides verifier implementations that evaluate plan-step
// expressions through external math tool APIs or a local expression engine.
package tools

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/mathsense/ai"
)

// Verifier evaluates a textual expression and returns a result or an error.
type Verifier interface {
	Name() string
	Evaluate(ctx context.Context, expression string) (string, error)
}

// NewVerifier creates the verifier selected by cfg.Provider. The choice is
// made once here; callers never switch providers at runtime.
func NewVerifier(cfg *ai.VerifierConfig) (Verifier, error) {
	switch cfg.Provider {
	case "", "cel":
		return NewCELVerifier()
	case "mathjs":
		return NewMathJSVerifier(cfg), nil
	case "wolfram":
		if cfg.WolframAppID == "" {
			return nil, errors.New("wolfram verifier requires an app id")
		}
		return NewWolframVerifier(cfg), nil
	default:
		return nil, errors.Errorf("unknown verifier provider: %s", cfg.Provider)
	}
}
