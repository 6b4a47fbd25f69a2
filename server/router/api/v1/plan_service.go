package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/mathsense/internal/strutil"
	"github.com/hrygo/mathsense/ai/tools"
)

// PlanRequest is the body of POST /api/v1/plan.
type PlanRequest struct {
	Problem string `json:"problem"`
	UserID  string `json:"user_id"`
	// Verify defaults to true when omitted.
	Verify *bool `json:"verify"`
}

// CreatePlan handles POST /api/v1/plan.
func (s *APIV1Service) CreatePlan(c echo.Context) error {
	var req PlanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.Problem = strings.TrimSpace(req.Problem)
	if req.Problem == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "problem is required")
	}
	verify := true
	if req.Verify != nil {
		verify = *req.Verify
	}

	requestID := uuid.NewString()
	start := time.Now()
	plan, err := s.Planner.Plan(c.Request().Context(), req.Problem, req.UserID, verify)
	latency := time.Since(start)
	s.Metrics.RecordPlanRequest(verify, latency, err == nil)

	if err != nil {
		// Cancellation mid-plan: completed steps are still worth returning.
		slog.Warn("plan interrupted", "request_id", requestID, "error", err)
	} else {
		slog.Info("plan created",
			"request_id", requestID,
			"problem", strutil.Truncate(req.Problem, 120),
			"steps", len(plan.Steps),
			"verified", verify,
			"duration_ms", latency.Milliseconds(),
		)
	}
	return c.JSON(http.StatusOK, plan)
}

// instrumentedVerifier wraps a verifier with per-call metrics.
type instrumentedVerifier struct {
	inner   tools.Verifier
	metrics interface {
		RecordVerification(tool string, latency time.Duration, success bool)
	}
}

func (v *instrumentedVerifier) Name() string { return v.inner.Name() }

func (v *instrumentedVerifier) Evaluate(ctx context.Context, expression string) (string, error) {
	start := time.Now()
	result, err := v.inner.Evaluate(ctx, expression)
	v.metrics.RecordVerification(v.inner.Name(), time.Since(start), err == nil)
	return result, err
}
