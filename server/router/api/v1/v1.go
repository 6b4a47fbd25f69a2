// Package v1 exposes the JSON API of the planning and retrieval core.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/mathsense/ai"
	"github.com/hrygo/mathsense/ai/agents/planner"
	"github.com/hrygo/mathsense/ai/memory"
	"github.com/hrygo/mathsense/ai/metrics"
	"github.com/hrygo/mathsense/ai/rag"
	"github.com/hrygo/mathsense/ai/tools"
	"github.com/hrygo/mathsense/internal/profile"
	"github.com/hrygo/mathsense/internal/version"
)

// APIV1Service hosts the HTTP handlers and the underlying services.
type APIV1Service struct {
	Profile   *profile.Profile
	Retrieval *rag.Manager
	Memory    *memory.Store
	Planner   *planner.Planner
	Metrics   *metrics.PrometheusExporter
}

// NewAPIV1Service builds the service graph from the instance profile:
// embedding provider (optional), memory store, retrieval manager, verifier
// and planner.
func NewAPIV1Service(instanceProfile *profile.Profile) (*APIV1Service, error) {
	aiConfig := ai.NewConfigFromProfile(instanceProfile)
	if err := aiConfig.Validate(); err != nil {
		return nil, err
	}

	var embedder memory.Embedder
	if aiConfig.IsEmbeddingConfigured() {
		embeddingService, err := ai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			// Embedding is optional: retrieval degrades to heuristic scoring.
			slog.Warn("failed to initialize embedding service, falling back to heuristic scoring",
				"provider", aiConfig.Embedding.Provider, "error", err)
		} else {
			embedder = ai.NewCachedEmbedder(embeddingService, 0, 0)
			slog.Info("embedding service initialized",
				"provider", aiConfig.Embedding.Provider, "model", aiConfig.Embedding.Model)
		}
	}

	storeConfig := &memory.Config{
		Dimensions:         aiConfig.Embedding.Dimensions,
		MaxRecordsPerOwner: aiConfig.Retrieval.MaxRecordsPerOwner,
	}
	if embedder == nil {
		storeConfig.Dimensions = 0
	}

	retrieval := rag.NewManager(embedder, storeConfig)
	conversationStore := memory.NewStore(embedder, storeConfig)

	verifier, err := tools.NewVerifier(&aiConfig.Verifier)
	if err != nil {
		return nil, err
	}
	slog.Info("verifier initialized", "tool", verifier.Name())

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
	plannerService := planner.New(retrieval, &instrumentedVerifier{inner: verifier, metrics: exporter}, &planner.Config{
		VerifyTimeout:              aiConfig.Planner.VerifyTimeout,
		MaxConcurrentVerifications: int64(aiConfig.Planner.MaxConcurrentVerifications),
		TopKGlobal:                 aiConfig.Retrieval.TopKGlobal,
		TopKUser:                   aiConfig.Retrieval.TopKUser,
	})

	return &APIV1Service{
		Profile:   instanceProfile,
		Retrieval: retrieval,
		Memory:    conversationStore,
		Planner:   plannerService,
		Metrics:   exporter,
	}, nil
}

// RegisterRoutes registers all API routes on the echo server.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.GetHealth)
	echoServer.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))

	apiGroup := echoServer.Group("/api/v1", middleware.CORS())
	apiGroup.POST("/plan", s.CreatePlan)
	apiGroup.POST("/documents/global", s.AddGlobalDocument)
	apiGroup.POST("/documents/user", s.AddUserDocument)
	apiGroup.GET("/retrieve", s.Retrieve)
	apiGroup.POST("/memory/turns", s.AddTurn)
	apiGroup.GET("/memory/:owner/history", s.GetHistory)
	apiGroup.GET("/memory/:owner/context", s.GetContextSnippet)
	apiGroup.POST("/profiles/:user", s.SetProfile)
	apiGroup.GET("/profiles/:user", s.GetProfile)
}

// GetHealth handles GET /healthz.
func (s *APIV1Service) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetCurrentVersion(s.Profile.Mode),
		"mode":    s.Profile.Mode,
	})
}
