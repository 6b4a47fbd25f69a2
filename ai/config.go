package ai

import (
	"errors"
	"time"

	"github.com/hrygo/mathsense/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	Verifier  VerifierConfig
	Retrieval RetrievalConfig
	Planner   PlannerConfig
	Enabled   bool
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// VerifierConfig represents math tool verification configuration.
type VerifierConfig struct {
	// Provider selects the verifier implementation: mathjs, wolfram, cel.
	// The choice is made once at construction; there is no runtime fallback
	// chain between providers.
	Provider string
	// BaseURL overrides the tool endpoint for HTTP providers.
	BaseURL string
	// WolframAppID authenticates against the WolframAlpha short-answers API.
	WolframAppID string
	// Timeout bounds a single tool call.
	Timeout time.Duration
	// RequestsPerSecond rate-limits calls to external tool APIs.
	RequestsPerSecond float64
}

// RetrievalConfig represents retrieval manager configuration.
type RetrievalConfig struct {
	TopKGlobal         int
	TopKUser           int
	MaxRecordsPerOwner int
}

// PlannerConfig represents planner configuration.
type PlannerConfig struct {
	VerifyTimeout              time.Duration
	MaxConcurrentVerifications int
}

// NewConfigFromProfile creates AI config from the instance profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Enabled: true,
		Embedding: EmbeddingConfig{
			Provider:   p.AIEmbeddingProvider,
			Model:      p.AIEmbeddingModel,
			APIKey:     p.AIEmbeddingAPIKey,
			BaseURL:    p.AIEmbeddingBaseURL,
			Dimensions: p.AIEmbeddingDimensions,
		},
		Verifier: VerifierConfig{
			Provider:          p.AIVerifierProvider,
			BaseURL:           p.AIVerifierBaseURL,
			WolframAppID:      p.AIWolframAppID,
			Timeout:           time.Duration(p.AIVerifierTimeoutSeconds) * time.Second,
			RequestsPerSecond: p.AIVerifierRequestsPerSecond,
		},
		Retrieval: RetrievalConfig{
			TopKGlobal:         p.AIRetrievalTopKGlobal,
			TopKUser:           p.AIRetrievalTopKUser,
			MaxRecordsPerOwner: p.AIMemoryMaxRecordsPerOwner,
		},
		Planner: PlannerConfig{
			VerifyTimeout:              time.Duration(p.AIVerifierTimeoutSeconds) * time.Second,
			MaxConcurrentVerifications: p.AIVerifierMaxConcurrent,
		},
	}
}

// Validate checks the configuration for consistency. Missing embedding
// credentials are not an error: the memory store degrades to heuristic
// scoring without an embedder.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Embedding.APIKey != "" && c.Embedding.Model == "" {
		return errors.New("embedding model is required when an embedding API key is set")
	}
	switch c.Verifier.Provider {
	case "", "mathjs", "cel":
	case "wolfram":
		if c.Verifier.WolframAppID == "" {
			return errors.New("wolfram verifier requires an app id")
		}
	default:
		return errors.New("unknown verifier provider: " + c.Verifier.Provider)
	}
	if c.Retrieval.TopKGlobal < 0 || c.Retrieval.TopKUser < 0 {
		return errors.New("retrieval topK must not be negative")
	}
	return nil
}

// IsEmbeddingConfigured reports whether an embedding provider is usable.
func (c *Config) IsEmbeddingConfigured() bool {
	return c.Enabled && c.Embedding.APIKey != ""
}
