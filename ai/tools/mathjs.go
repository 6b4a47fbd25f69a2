package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/mathsense/ai"
)

// DefaultMathJSBaseURL is the public MathJS evaluation endpoint.
const DefaultMathJSBaseURL = "https://api.mathjs.org/v4/"

// MathJSVerifier evaluates expressions through the MathJS HTTP API.
// Calls are rate-limited to stay within the public API's limits.
type MathJSVerifier struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewMathJSVerifier creates a MathJS-backed verifier.
func NewMathJSVerifier(cfg *ai.VerifierConfig) *MathJSVerifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultMathJSBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &MathJSVerifier{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name returns the tool identifier recorded on verified steps.
func (v *MathJSVerifier) Name() string { return "mathjs" }

// Evaluate posts the expression and returns the response body as the
// result. Non-2xx responses surface the body as the error message, matching
// how the API reports evaluation failures.
func (v *MathJSVerifier) Evaluate(ctx context.Context, expression string) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]string{"expr": expression})
	if err != nil {
		return "", errors.Wrap(err, "marshal mathjs request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "create mathjs request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "mathjs request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read mathjs response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("mathjs error: %s", strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}
