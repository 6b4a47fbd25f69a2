package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/mathsense/ai/memory"
)

// TurnRequest is the body of POST /api/v1/memory/turns.
type TurnRequest struct {
	Owner string `json:"owner"`
	Role  string `json:"role"`
	Text  string `json:"text"`
	// Timestamp is optional, in unix seconds; zero means "now".
	Timestamp float64 `json:"timestamp"`
}

// Turn is the wire shape of a conversation turn.
type Turn struct {
	ID        string  `json:"id"`
	Owner     string  `json:"owner"`
	Role      string  `json:"role"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// AddTurn handles POST /api/v1/memory/turns.
func (s *APIV1Service) AddTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Owner == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "owner is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	switch req.Role {
	case "":
		req.Role = memory.RoleUser
	case memory.RoleUser, memory.RoleAssistant, memory.RoleSystem:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user, assistant or system")
	}

	id := s.Memory.AddTurn(c.Request().Context(), req.Owner, req.Role, req.Text, parseTimestamp(req.Timestamp))
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// GetHistory handles GET /api/v1/memory/:owner/history.
func (s *APIV1Service) GetHistory(c echo.Context) error {
	owner := c.Param("owner")
	limit := intQueryParam(c, "limit", 0)

	turns := s.Memory.History(owner, limit)
	wire := make([]Turn, 0, len(turns))
	for _, t := range turns {
		wire = append(wire, Turn{
			ID:        t.ID,
			Owner:     t.Owner,
			Role:      t.Role,
			Text:      t.Text,
			Timestamp: float64(t.Timestamp.UnixNano()) / float64(time.Second),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"turns": wire})
}

// GetContextSnippet handles GET /api/v1/memory/:owner/context.
func (s *APIV1Service) GetContextSnippet(c echo.Context) error {
	owner := c.Param("owner")
	query := c.QueryParam("q")
	if strings.TrimSpace(query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k := intQueryParam(c, "k", 5)

	snippet := s.Memory.BuildContextSnippet(c.Request().Context(), owner, query, k)
	return c.JSON(http.StatusOK, map[string]string{"context": snippet})
}

// ProfileRequest is the body of POST /api/v1/profiles/:user.
type ProfileRequest struct {
	Attrs map[string]string `json:"attrs"`
}

// SetProfile handles POST /api/v1/profiles/:user.
func (s *APIV1Service) SetProfile(c echo.Context) error {
	user := c.Param("user")
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if len(req.Attrs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "attrs is required")
	}

	s.Memory.SetProfileAttributes(user, req.Attrs)
	return c.JSON(http.StatusOK, map[string]any{"attrs": s.Memory.ProfileAttributes(user)})
}

// GetProfile handles GET /api/v1/profiles/:user.
func (s *APIV1Service) GetProfile(c echo.Context) error {
	user := c.Param("user")
	return c.JSON(http.StatusOK, map[string]any{"attrs": s.Memory.ProfileAttributes(user)})
}

// intQueryParam parses an integer query parameter with a default.
func intQueryParam(c echo.Context, name string, defaultValue int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
