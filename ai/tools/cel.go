package tools

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// CELVerifier evaluates arithmetic expressions locally with CEL. It needs no
// network access or credentials, which makes it the default verifier for
// offline and development setups. Prose steps and symbolic equations fail to
// compile; that failure is reported as a normal verification error and the
// plan continues.
type CELVerifier struct {
	env *cel.Env
}

// NewCELVerifier creates a local CEL expression verifier.
func NewCELVerifier() (*CELVerifier, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}
	return &CELVerifier{env: env}, nil
}

// Name returns the tool identifier recorded on verified steps.
func (v *CELVerifier) Name() string { return "cel" }

// Evaluate compiles and evaluates expression.
func (v *CELVerifier) Evaluate(ctx context.Context, expression string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	compiled, issues := v.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return "", errors.Wrap(issues.Err(), "not a cel expression")
	}

	prg, err := v.env.Program(compiled)
	if err != nil {
		return "", errors.Wrap(err, "build cel program")
	}

	out, _, err := prg.ContextEval(ctx, cel.NoVars())
	if err != nil {
		return "", errors.Wrap(err, "evaluate expression")
	}
	return fmt.Sprintf("%v", out.Value()), nil
}
