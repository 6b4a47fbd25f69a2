package v1

import (
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/mathsense/internal/strutil"
	"github.com/hrygo/mathsense/ai/memory"
	"github.com/hrygo/mathsense/ai/rag"
)

// DocumentRequest is the body of the document ingestion endpoints.
type DocumentRequest struct {
	UserID string `json:"user_id"`
	DocID  string `json:"doc_id"`
	Text   string `json:"text"`
	// Timestamp is optional, in unix seconds; zero means "now".
	Timestamp float64 `json:"timestamp"`
}

// Hit is the wire shape of a retrieval hit.
type Hit struct {
	ID        string  `json:"id"`
	Owner     string  `json:"owner"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Timestamp float64 `json:"timestamp"`
	Source    string  `json:"source"`
}

func toWireHit(h memory.Hit) Hit {
	return Hit{
		ID:        h.ID,
		Owner:     h.Owner,
		Text:      h.Text,
		Score:     h.Score,
		Timestamp: float64(h.Timestamp.UnixNano()) / float64(time.Second),
		Source:    h.Source,
	}
}

func parseTimestamp(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// AddGlobalDocument handles POST /api/v1/documents/global.
func (s *APIV1Service) AddGlobalDocument(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if req.DocID == "" {
		req.DocID = shortuuid.New()
	}

	s.Retrieval.AddGlobalDocument(c.Request().Context(), req.DocID, req.Text, parseTimestamp(req.Timestamp))
	slog.Debug("document ingested", "scope", rag.SourceGlobal, "doc_id", req.DocID, "text", strutil.Truncate(req.Text, 80))
	return c.JSON(http.StatusCreated, map[string]string{"doc_id": req.DocID, "scope": rag.SourceGlobal})
}

// AddUserDocument handles POST /api/v1/documents/user.
func (s *APIV1Service) AddUserDocument(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if req.DocID == "" {
		req.DocID = shortuuid.New()
	}

	s.Retrieval.AddUserDocument(c.Request().Context(), req.UserID, req.DocID, req.Text, parseTimestamp(req.Timestamp))
	slog.Debug("document ingested", "scope", rag.SourceUser, "user_id", req.UserID, "doc_id", req.DocID, "text", strutil.Truncate(req.Text, 80))
	return c.JSON(http.StatusCreated, map[string]string{"doc_id": req.DocID, "scope": rag.SourceUser})
}

// Retrieve handles GET /api/v1/retrieve.
func (s *APIV1Service) Retrieve(c echo.Context) error {
	query := c.QueryParam("q")
	if strings.TrimSpace(query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	userID := c.QueryParam("user_id")
	kGlobal := intQueryParam(c, "k_global", rag.DefaultTopKGlobal)
	kUser := intQueryParam(c, "k_user", rag.DefaultTopKUser)

	hits := s.Retrieval.Retrieve(c.Request().Context(), query, userID, kGlobal, kUser)

	wire := make([]Hit, 0, len(hits))
	counts := map[string]int{}
	for _, h := range hits {
		counts[h.Source]++
		wire = append(wire, toWireHit(h))
	}
	for source, count := range counts {
		s.Metrics.RecordRetrievalHits(source, count)
	}

	return c.JSON(http.StatusOK, map[string]any{"hits": wire})
}
