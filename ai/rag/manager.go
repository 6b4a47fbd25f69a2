// Package rag composes a global document store with lazily-created per-user
// stores and merges retrieval results across both scopes.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/mathsense/ai/memory"
)

// Hit sources.
const (
	SourceGlobal = "global"
	SourceUser   = "user"
)

// GlobalOwner is the reserved owner key of the global store.
const GlobalOwner = "global"

// Default result counts per scope.
const (
	DefaultTopKGlobal = 3
	DefaultTopKUser   = 3
)

// UserOwner returns the owner key for a user-scoped document.
func UserOwner(userID string) string {
	return "user:" + userID
}

// Manager owns the global store and the map of per-user stores. Per-user
// stores are created on first use and inherit the global store's embedder
// and configuration; they are never destroyed.
type Manager struct {
	global *memory.Store

	mu    sync.RWMutex
	users map[string]*memory.Store
}

// NewManager creates a retrieval manager. embedder may be nil.
func NewManager(embedder memory.Embedder, config *memory.Config) *Manager {
	return &Manager{
		global: memory.NewStore(embedder, config),
		users:  make(map[string]*memory.Store),
	}
}

// userStore returns the store of userID, creating it on first access.
// Creation is idempotent under concurrency: the double check below ensures a
// single store instance per user.
func (m *Manager) userStore(userID string) *memory.Store {
	m.mu.RLock()
	store, ok := m.users[userID]
	m.mu.RUnlock()
	if ok {
		return store
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if store, ok := m.users[userID]; ok {
		return store
	}
	store = memory.NewStore(m.global.Embedder(), m.global.Config())
	m.users[userID] = store
	return store
}

// AddGlobalDocument appends a document to the global store. The document
// text is stored prefixed with its id so retrieval hits remain attributable.
func (m *Manager) AddGlobalDocument(ctx context.Context, docID, text string, timestamp time.Time) {
	m.global.AddTurn(ctx, GlobalOwner, memory.RoleSystem, fmt.Sprintf("%s: %s", docID, text), timestamp)
}

// AddUserDocument appends a document to the store of userID, creating the
// store if needed.
func (m *Manager) AddUserDocument(ctx context.Context, userID, docID, text string, timestamp time.Time) {
	store := m.userStore(userID)
	store.AddTurn(ctx, UserOwner(userID), memory.RoleSystem, fmt.Sprintf("%s: %s", docID, text), timestamp)
}

// Retrieve merges global and user-scoped hits for query, sorted by score
// descending and deduplicated by exact text. An empty userID skips the user
// scope entirely.
//
// Equal-score ties keep pre-sort order, and global hits are placed before
// user hits before sorting, so a global document beats a user document with
// identical text and score. That ordering is a deliberate policy, not an
// accident of the sort; keep the sort stable.
func (m *Manager) Retrieve(ctx context.Context, query, userID string, topKGlobal, topKUser int) []memory.Hit {
	// Negative limits mean "nothing from this scope", never an error.
	if topKGlobal < 0 {
		topKGlobal = 0
	}
	if topKUser < 0 {
		topKUser = 0
	}

	combined := make([]memory.Hit, 0, topKGlobal+topKUser)

	for _, h := range m.global.Query(ctx, query, GlobalOwner, topKGlobal) {
		h.Source = SourceGlobal
		combined = append(combined, h)
	}

	if userID != "" {
		m.mu.RLock()
		store, ok := m.users[userID]
		m.mu.RUnlock()
		if ok {
			for _, h := range store.Query(ctx, query, UserOwner(userID), topKUser) {
				h.Source = SourceUser
				combined = append(combined, h)
			}
		}
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Score > combined[j].Score
	})

	seen := make(map[string]struct{}, len(combined))
	merged := combined[:0]
	for _, h := range combined {
		if _, ok := seen[h.Text]; ok {
			continue
		}
		seen[h.Text] = struct{}{}
		merged = append(merged, h)
	}
	return merged
}

// BuildContext formats merged hits as a prompt snippet with one
// "[SOURCE] text" line per hit. Returns the empty string when nothing
// matches.
func (m *Manager) BuildContext(ctx context.Context, query, userID string, kGlobal, kUser int) string {
	hits := m.Retrieve(ctx, query, userID, kGlobal, kUser)
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant documents (RAG):\n")
	for i, h := range hits {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fmt.Sprintf("[%s] %s", strings.ToUpper(h.Source), h.Text))
	}
	return b.String()
}
