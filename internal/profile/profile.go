package profile

import (
	"log/slog"
	"os"
	"strconv"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Embedding configuration (OpenAI-compatible protocol).
	// All providers (siliconflow, openai, ollama, dashscope) use the same config.
	AIEmbeddingProvider   string
	AIEmbeddingModel      string
	AIEmbeddingAPIKey     string
	AIEmbeddingBaseURL    string
	AIEmbeddingDimensions int

	// Verifier (tool evaluation) configuration
	AIVerifierProvider          string  // mathjs, wolfram, cel
	AIVerifierBaseURL           string  // endpoint override for HTTP providers
	AIWolframAppID              string  // WolframAlpha short-answers app id
	AIVerifierTimeoutSeconds    int     // per-call timeout (default: 15)
	AIVerifierMaxConcurrent     int     // cap on outstanding verification calls (default: 4)
	AIVerifierRequestsPerSecond float64 // external tool API rate limit (default: 5)

	// Retrieval configuration
	AIRetrievalTopKGlobal      int
	AIRetrievalTopKUser        int
	AIMemoryMaxRecordsPerOwner int // 0 = unbounded

	// Other configurations
	Mode        string
	Addr        string
	InstanceURL string
	Version     string
	Port        int
}

// Provider default configurations for embeddings.
// Used when MATHSENSE_AI_EMBEDDING_BASE_URL is not explicitly set.
var embeddingProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "BAAI/bge-m3",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-small",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "text-embedding-v3",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if an embedding API key is configured.
// Without one the memory store runs in heuristic-scoring mode.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.AIEmbeddingAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// Embedding configuration
	p.AIEmbeddingProvider = getEnvOrDefault("MATHSENSE_AI_EMBEDDING_PROVIDER", "siliconflow")
	p.AIEmbeddingModel = getEnvOrDefault("MATHSENSE_AI_EMBEDDING_MODEL", "")
	p.AIEmbeddingAPIKey = getEnvOrDefault("MATHSENSE_AI_EMBEDDING_API_KEY", "")
	p.AIEmbeddingBaseURL = getEnvOrDefault("MATHSENSE_AI_EMBEDDING_BASE_URL", "")
	p.AIEmbeddingDimensions = getEnvOrDefaultInt("MATHSENSE_AI_EMBEDDING_DIMENSIONS", 1024)

	// Validate and apply provider defaults if not explicitly set
	if p.AIEmbeddingProvider != "" {
		if _, ok := embeddingProviderDefaults[p.AIEmbeddingProvider]; !ok {
			slog.Warn("Unknown embedding provider, using default: siliconflow", "provider", p.AIEmbeddingProvider)
			p.AIEmbeddingProvider = "siliconflow"
		}
	}
	if p.AIEmbeddingBaseURL == "" || p.AIEmbeddingModel == "" {
		if defaults, ok := embeddingProviderDefaults[p.AIEmbeddingProvider]; ok {
			if p.AIEmbeddingBaseURL == "" {
				p.AIEmbeddingBaseURL = defaults.BaseURL
			}
			if p.AIEmbeddingModel == "" {
				p.AIEmbeddingModel = defaults.Model
			}
		}
	}

	// Verifier configuration
	p.AIVerifierProvider = getEnvOrDefault("MATHSENSE_AI_VERIFIER_PROVIDER", "cel")
	p.AIVerifierBaseURL = getEnvOrDefault("MATHSENSE_AI_VERIFIER_BASE_URL", "")
	p.AIWolframAppID = getEnvOrDefault("MATHSENSE_AI_WOLFRAM_APP_ID", "")
	p.AIVerifierTimeoutSeconds = getEnvOrDefaultInt("MATHSENSE_AI_VERIFIER_TIMEOUT_SECONDS", 15)
	p.AIVerifierMaxConcurrent = getEnvOrDefaultInt("MATHSENSE_AI_VERIFIER_MAX_CONCURRENT", 4)
	p.AIVerifierRequestsPerSecond = getEnvOrDefaultFloat("MATHSENSE_AI_VERIFIER_RATE_LIMIT", 5)

	// Retrieval configuration
	p.AIRetrievalTopKGlobal = getEnvOrDefaultInt("MATHSENSE_AI_RETRIEVAL_TOPK_GLOBAL", 3)
	p.AIRetrievalTopKUser = getEnvOrDefaultInt("MATHSENSE_AI_RETRIEVAL_TOPK_USER", 3)
	p.AIMemoryMaxRecordsPerOwner = getEnvOrDefaultInt("MATHSENSE_AI_MEMORY_MAX_RECORDS_PER_OWNER", 0)
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Port <= 0 || p.Port > 65535 {
		p.Port = 8081
	}
	if p.AIVerifierTimeoutSeconds <= 0 {
		p.AIVerifierTimeoutSeconds = 15
	}
	if p.AIVerifierMaxConcurrent <= 0 {
		p.AIVerifierMaxConcurrent = 4
	}
	if p.AIRetrievalTopKGlobal < 0 {
		p.AIRetrievalTopKGlobal = 0
	}
	if p.AIRetrievalTopKUser < 0 {
		p.AIRetrievalTopKUser = 0
	}
	if p.AIMemoryMaxRecordsPerOwner < 0 {
		p.AIMemoryMaxRecordsPerOwner = 0
	}
	return nil
}
