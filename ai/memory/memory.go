// Package memory provides the in-memory record store for conversation turns,
// user profiles and similarity retrieval.
//
// The store is append-only: turns are indexed at insertion time and never
// edited. Retrieval uses embedding cosine similarity when vectors are
// available and degrades to a substring/word-overlap heuristic otherwise, so
// the store stays usable without any embedding provider configured.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Roles for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Embedder converts text into a fixed-dimension vector.
// Implementations: ai.EmbeddingService (production), mocks (testing).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Turn is a single immutable conversation turn.
type Turn struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Hit is a scored retrieval result.
// Source is set by the retrieval manager ("global" or "user"); it is empty
// for hits returned directly by a store.
type Hit struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// Config holds store configuration.
type Config struct {
	// Dimensions is the expected embedding dimension. Vectors of any other
	// length are discarded and the record is kept without an embedding.
	// Zero accepts vectors of any length.
	Dimensions int

	// MaxRecordsPerOwner caps how many records are retained per owner.
	// When the cap is exceeded the oldest records of that owner are evicted
	// from the search index. Zero means unbounded.
	MaxRecordsPerOwner int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	return &Config{
		Dimensions:         0,
		MaxRecordsPerOwner: 0,
	}
}

// record is an indexed entry in the search index.
type record struct {
	id        string
	owner     string
	text      string
	embedding []float32
	timestamp time.Time
}

// Store is an in-memory store for conversation history, user profiles and
// the similarity search index. Thread-safe for concurrent access.
type Store struct {
	embedder Embedder
	config   *Config

	mu            sync.RWMutex
	conversations map[string][]Turn
	profiles      map[string]map[string]string
	records       []record
	seq           map[string]int
}

// NewStore creates a new record store. embedder may be nil, in which case
// all scoring uses the heuristic fallback.
func NewStore(embedder Embedder, config *Config) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	return &Store{
		embedder:      embedder,
		config:        config,
		conversations: make(map[string][]Turn),
		profiles:      make(map[string]map[string]string),
		seq:           make(map[string]int),
	}
}

// Embedder returns the embedder this store was configured with.
func (s *Store) Embedder() Embedder {
	return s.embedder
}

// Config returns the store configuration.
func (s *Store) Config() *Config {
	return s.config
}

// AddTurn appends a turn for owner and indexes it for retrieval.
// A zero timestamp defaults to the current time. Embedding failures and
// dimension mismatches are recovered locally: the turn is stored without a
// vector and retrieval degrades to heuristic scoring for this record only.
func (s *Store) AddTurn(ctx context.Context, owner, role, text string, timestamp time.Time) string {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	// Embedding is a blocking network call; never hold the store lock here.
	embedding := s.embed(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.seq[owner]
	s.seq[owner] = n + 1
	id := fmt.Sprintf("turn:%s:%d", owner, n)

	turn := Turn{
		ID:        id,
		Owner:     owner,
		Role:      role,
		Text:      text,
		Embedding: embedding,
		Timestamp: timestamp,
	}
	s.conversations[owner] = append(s.conversations[owner], turn)
	s.records = append(s.records, record{
		id:        id,
		owner:     owner,
		text:      text,
		embedding: embedding,
		timestamp: timestamp,
	})
	s.evictLocked(owner)

	return id
}

// embed computes an embedding for text, returning nil on any failure or
// dimension mismatch.
func (s *Store) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		slog.Debug("embedding failed, storing record without vector", "error", err)
		return nil
	}
	if len(embedding) == 0 {
		// An empty vector would cosine-score 0 against everything and hide
		// the record; treat it as absent so heuristic scoring applies.
		return nil
	}
	if s.config.Dimensions > 0 && len(embedding) != s.config.Dimensions {
		slog.Warn("embedding dimension mismatch, storing record without vector",
			"got", len(embedding), "want", s.config.Dimensions)
		return nil
	}
	return embedding
}

// evictLocked enforces MaxRecordsPerOwner for owner. Caller must hold mu.
func (s *Store) evictLocked(owner string) {
	limit := s.config.MaxRecordsPerOwner
	if limit <= 0 {
		return
	}

	if turns := s.conversations[owner]; len(turns) > limit {
		s.conversations[owner] = append([]Turn(nil), turns[len(turns)-limit:]...)
	}

	count := 0
	for i := range s.records {
		if s.records[i].owner == owner {
			count++
		}
	}
	if count <= limit {
		return
	}
	// Drop the oldest records of this owner; insertion order is time order.
	drop := count - limit
	kept := s.records[:0]
	for _, r := range s.records {
		if drop > 0 && r.owner == owner {
			drop--
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
}

// History returns the most recent limit turns of owner in chronological
// order. limit <= 0 returns all turns. Unknown owners yield an empty slice.
func (s *Store) History(owner string, limit int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[owner]
	if limit > 0 && limit < len(turns) {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// SetProfileAttributes merges attrs into the profile of userID.
// The merge is shallow with last-write-wins per key.
func (s *Store) SetProfileAttributes(userID string, attrs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		profile = make(map[string]string, len(attrs))
		s.profiles[userID] = profile
	}
	for k, v := range attrs {
		profile[k] = v
	}
}

// ProfileAttributes returns a copy of the profile of userID.
func (s *Store) ProfileAttributes(userID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile := s.profiles[userID]
	out := make(map[string]string, len(profile))
	for k, v := range profile {
		out[k] = v
	}
	return out
}

// Query returns the topK records most relevant to query, sorted by score
// descending. owner restricts the search to a single owner; the empty string
// matches all records. Records scoring zero or below are excluded and a
// negative topK is clamped to zero.
//
// Ties are broken by insertion order: the earlier-inserted record wins. The
// stable sort below is load-bearing for that guarantee.
func (s *Store) Query(ctx context.Context, query, owner string, topK int) []Hit {
	if topK < 0 {
		topK = 0
	}

	// Embed the query outside the lock; a nil result degrades every
	// comparison to heuristic scoring.
	queryEmbedding := s.embed(ctx, query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.records))
	for _, r := range s.records {
		if owner != "" && owner != r.owner {
			continue
		}
		var score float64
		if queryEmbedding != nil && r.embedding != nil {
			score = cosineSimilarity(queryEmbedding, r.embedding)
		} else {
			score = heuristicScore(query, r.text)
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			ID:        r.id,
			Owner:     r.owner,
			Text:      r.text,
			Score:     score,
			Timestamp: r.timestamp,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits
}

// BuildContextSnippet formats the top k hits for owner as timestamped lines
// suitable for prompt injection. Returns the empty string when nothing
// matches.
func (s *Store) BuildContextSnippet(ctx context.Context, owner, query string, k int) string {
	hits := s.Query(ctx, query, owner, k)
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant past conversation snippets:\n")
	for i, h := range hits {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fmt.Sprintf("[%s] %s", h.Timestamp.Format("2006-01-02 15:04:05"), h.Text))
	}
	return b.String()
}
