package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/mathsense/internal/profile"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	testProfile := &profile.Profile{
		Mode:                        "demo",
		Version:                     "0.0.0-test",
		AIVerifierProvider:          "cel",
		AIVerifierTimeoutSeconds:    5,
		AIVerifierMaxConcurrent:     4,
		AIVerifierRequestsPerSecond: 100,
		AIRetrievalTopKGlobal:       3,
		AIRetrievalTopKUser:         3,
	}

	service, err := NewAPIV1Service(testProfile)
	require.NoError(t, err)

	echoServer := echo.New()
	echoServer.HideBanner = true
	service.RegisterRoutes(echoServer)
	return echoServer
}

func doJSON(t *testing.T, server *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestGetHealth(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "demo", body["mode"])
}

func TestDocumentIngestAndRetrieve(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server, http.MethodPost, "/api/v1/documents/global",
		`{"doc_id": "pythag", "text": "a^2 + b^2 = c^2 relates the sides of a right triangle"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pythag", body["doc_id"])

	rec, body = doJSON(t, server, http.MethodPost, "/api/v1/documents/user",
		`{"user_id": "alice", "text": "alice prefers geometric proofs of the triangle identity"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	// Omitted doc ids are generated server-side.
	assert.NotEmpty(t, body["doc_id"])

	rec, body = doJSON(t, server, http.MethodGet, "/api/v1/retrieve?q=triangle&user_id=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	hits, ok := body["hits"].([]any)
	require.True(t, ok)
	require.Len(t, hits, 2)
	sources := make([]string, 0, len(hits))
	for _, raw := range hits {
		hit := raw.(map[string]any)
		assert.Greater(t, hit["score"].(float64), 0.0)
		sources = append(sources, hit["source"].(string))
	}
	assert.Contains(t, sources, "global")
	assert.Contains(t, sources, "user")
}

func TestRetrieveRequiresQuery(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodGet, "/api/v1/retrieve", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddUserDocumentRequiresUserID(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/v1/documents/user", `{"text": "orphan"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePlanWithRetrievalContext(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/v1/documents/global",
		`{"doc_id": "pythag", "text": "pythagorean theorem: a^2 + b^2 = c^2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, server, http.MethodPost, "/api/v1/plan",
		`{"problem": "Use the pythagorean theorem to find the hypotenuse. State the answer.", "verify": false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotEmpty(t, body["rag_context"])
	steps, ok := body["plan"].([]any)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(steps), 3)
	first := steps[0].(map[string]any)
	assert.True(t, strings.HasPrefix(first["step"].(string), "Consult relevant formulas and proofs:"))
	// verify=false leaves every step unverified.
	for _, raw := range steps {
		step := raw.(map[string]any)
		assert.Nil(t, step["verification"])
	}
}

func TestCreatePlanVerifiesMathSteps(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server, http.MethodPost, "/api/v1/plan", `{"problem": "2 + 3 * 4"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	steps, ok := body["plan"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]any)
	verification, ok := step["verification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "14", verification["result"])
}

func TestCreatePlanRequiresProblem(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/v1/plan", `{"problem": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryTurnsAndHistory(t *testing.T) {
	server := newTestServer(t)

	rec, body := doJSON(t, server, http.MethodPost, "/api/v1/memory/turns",
		`{"owner": "alice", "role": "user", "text": "what is the quadratic formula?"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "turn:alice:0", body["id"])

	rec, _ = doJSON(t, server, http.MethodPost, "/api/v1/memory/turns",
		`{"owner": "alice", "role": "assistant", "text": "x = (-b ± sqrt(b^2-4ac)) / 2a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body = doJSON(t, server, http.MethodGet, "/api/v1/memory/alice/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	turns, ok := body["turns"].([]any)
	require.True(t, ok)
	require.Len(t, turns, 2)
	first := turns[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Greater(t, first["timestamp"].(float64), 0.0)

	rec, body = doJSON(t, server, http.MethodGet, "/api/v1/memory/alice/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	turns = body["turns"].([]any)
	require.Len(t, turns, 1)
	assert.Equal(t, "assistant", turns[0].(map[string]any)["role"])
}

func TestAddTurnRejectsUnknownRole(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/v1/memory/turns",
		`{"owner": "alice", "role": "moderator", "text": "hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContextSnippet(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/v1/memory/turns",
		`{"owner": "bob", "text": "derivative of x^2 is 2x"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, server, http.MethodGet, "/api/v1/memory/bob/context?q=derivative", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snippet := body["context"].(string)
	assert.Contains(t, snippet, "Relevant past conversation snippets:")
	assert.Contains(t, snippet, "derivative of x^2 is 2x")

	rec, _ = doJSON(t, server, http.MethodGet, "/api/v1/memory/bob/context", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfilesMerge(t *testing.T) {
	server := newTestServer(t)

	rec, _ := doJSON(t, server, http.MethodPost, "/api/v1/profiles/alice",
		`{"attrs": {"level": "undergraduate", "topic": "algebra"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doJSON(t, server, http.MethodPost, "/api/v1/profiles/alice",
		`{"attrs": {"topic": "calculus"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	attrs := body["attrs"].(map[string]any)
	assert.Equal(t, "undergraduate", attrs["level"])
	assert.Equal(t, "calculus", attrs["topic"])

	rec, body = doJSON(t, server, http.MethodGet, "/api/v1/profiles/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	attrs = body["attrs"].(map[string]any)
	assert.Equal(t, "calculus", attrs["topic"])
}
