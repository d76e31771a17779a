// Package storage contains the in-memory document store used by the dev
// server and by tests. Go keeps each package in its own folder; files in the
// folder share a namespace.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dharsanguruparan/VaultSign/internal/model"
)

// MemoryStore keeps documents in a map guarded by an RWMutex. RWMutex lets
// many readers list documents while writes take the exclusive lock.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*model.Document),
	}
}

// EnsureSchema is a no-op; the map exists from construction.
func (m *MemoryStore) EnsureSchema(ctx context.Context) error {
	return nil
}

// Create inserts a record. Ids are never reused.
func (m *MemoryStore) Create(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	// defer guarantees the unlock even on early return.
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return fmt.Errorf("insert document: duplicate id %s", doc.ID)
	}
	copy := *doc
	m.docs[doc.ID] = &copy
	return nil
}

// Get returns a record copy.
func (m *MemoryStore) Get(ctx context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	// Returning a shallow copy prevents callers from mutating internal state.
	copy := *doc
	return &copy, nil
}

// List returns copies of every record ordered by CreatedAt, newest first.
func (m *MemoryStore) List(ctx context.Context) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, *doc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the record when its stored status still equals from.
func (m *MemoryStore) Update(ctx context.Context, doc *model.Document, from model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.docs[doc.ID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrNotFound, doc.ID)
	}
	if current.Status != from {
		return fmt.Errorf("%w: %s", model.ErrStaleStatus, doc.ID)
	}
	next := *current
	next.Status = doc.Status
	next.SharedWith = doc.SharedWith
	next.SharedAt = doc.SharedAt
	next.SignedAt = doc.SignedAt
	next.SignaturePath = doc.SignaturePath
	next.SignatureURL = doc.SignatureURL
	m.docs[doc.ID] = &next
	return nil
}

// ObjectKeys returns every blob key referenced by stored records.
func (m *MemoryStore) ObjectKeys(ctx context.Context) (model.ObjectKeys, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := model.NewObjectKeys()
	for _, doc := range m.docs {
		keys.FilePaths[doc.FilePath] = struct{}{}
		if doc.SignaturePath != nil {
			keys.SignaturePaths[*doc.SignaturePath] = struct{}{}
		}
	}
	return keys, nil
}
