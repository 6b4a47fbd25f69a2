package tools

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/mathsense/ai"
)

// DefaultWolframBaseURL is the WolframAlpha short-answers endpoint.
const DefaultWolframBaseURL = "https://api.wolframalpha.com/v1/result"

// WolframVerifier evaluates expressions through the WolframAlpha
// short-answers API.
type WolframVerifier struct {
	client  *http.Client
	baseURL string
	appID   string
	limiter *rate.Limiter
}

// NewWolframVerifier creates a WolframAlpha-backed verifier.
func NewWolframVerifier(cfg *ai.VerifierConfig) *WolframVerifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultWolframBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &WolframVerifier{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		appID:   cfg.WolframAppID,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name returns the tool identifier recorded on verified steps.
func (v *WolframVerifier) Name() string { return "wolfram" }

// Evaluate queries the short-answers API. The API answers 200 with a plain
// text result, or a non-2xx status with a human-readable explanation which
// becomes the error message.
func (v *WolframVerifier) Evaluate(ctx context.Context, expression string) (string, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("i", expression)
	params.Set("appid", v.appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "create wolfram request")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "wolfram request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read wolfram response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("wolfram error: %s", strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}
