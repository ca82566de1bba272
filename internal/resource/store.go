package resource

import (
	"fmt"
	"sync"
	"time"

	"github.com/cactuslab/cactus-client-go/internal/cerrors"
	"github.com/cactuslab/cactus-client-go/internal/sep2"
)

// Stored is a single resource the store holds.
type Stored struct {
	ID          ID
	CreatedAt   time.Time
	Kind        sep2.Kind
	Payload     any
	ChildLinks  map[sep2.Kind]string
	MemberOfList sep2.Kind // "" if not a list item
}

// Store is the typed tree of discovered server resources for one
// client, never shared across clients. It keeps two parallel indices,
// by identifier and by kind, and a side table of per-identifier
// annotations. All methods are safe for concurrent read access; the
// execution loop is the sole writer, but the mutex keeps a racy UI
// reader safe too.
type Store struct {
	mu          sync.RWMutex
	byID        map[string]*Stored
	byKind      map[sep2.Kind]map[string]*Stored
	annotations map[string]*Annotation
	now         func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:        map[string]*Stored{},
		byKind:      map[sep2.Kind]map[string]*Stored{},
		annotations: map[string]*Annotation{},
		now:         time.Now,
	}
}

func (s *Store) indexKind(kind sep2.Kind) map[string]*Stored {
	m, ok := s.byKind[kind]
	if !ok {
		m = map[string]*Stored{}
		s.byKind[kind] = m
	}
	return m
}

// Append stores a new resource. It fails if the payload lacks an href
// or an entry already exists at the computed identifier.
func (s *Store) Append(kind sep2.Kind, parent ID, payload any) (*Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	href := hrefOf(payload)
	if href == "" {
		return nil, cerrors.Newf(cerrors.UnhandledKind, "resource.Append", "payload of kind %s has no href", kind)
	}
	id := NewID(href, parent)
	if _, exists := s.byID[id.Key()]; exists {
		return nil, cerrors.Newf(cerrors.UnhandledKind, "resource.Append", "resource %v already exists", id)
	}

	stored := &Stored{
		ID:         id,
		CreatedAt:  s.now(),
		Kind:       kind,
		Payload:    payload,
		ChildLinks: childLinks(kind, payload),
	}
	s.byID[id.Key()] = stored
	s.indexKind(kind)[id.Key()] = stored
	return stored, nil
}

// Upsert stores a resource, replacing any existing entry at the same
// identifier in place. Annotations at that identifier are preserved.
func (s *Store) Upsert(kind sep2.Kind, parent ID, payload any) (*Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	href := hrefOf(payload)
	if href == "" {
		return nil, cerrors.Newf(cerrors.UnhandledKind, "resource.Upsert", "payload of kind %s has no href", kind)
	}
	id := NewID(href, parent)
	key := id.Key()

	existing, exists := s.byID[key]
	createdAt := s.now()
	if exists {
		createdAt = existing.CreatedAt
	}

	stored := &Stored{
		ID:         id,
		CreatedAt:  createdAt,
		Kind:       kind,
		Payload:    payload,
		ChildLinks: childLinks(kind, payload),
	}
	if exists {
		stored.MemberOfList = existing.MemberOfList
	}
	s.byID[key] = stored
	s.indexKind(kind)[key] = stored
	return stored, nil
}

// AppendListItem is Append, additionally tagging the stored resource
// as a member of the given list kind.
func (s *Store) AppendListItem(kind sep2.Kind, parent ID, payload any, listKind sep2.Kind) (*Stored, error) {
	stored, err := s.Append(kind, parent, payload)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	stored.MemberOfList = listKind
	s.mu.Unlock()
	return stored, nil
}

// Delete removes the exact identifier from both indices, without
// recursing into descendants (they are tolerated as orphans).
func (s *Store) Delete(id ID) *Stored {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.Key()
	stored, ok := s.byID[key]
	if !ok {
		return nil
	}
	delete(s.byID, key)
	if m, ok := s.byKind[stored.Kind]; ok {
		delete(m, key)
	}
	return stored
}

// ClearKind removes every stored resource of kind and unlinks those
// identifiers from the by-id index.
func (s *Store) ClearKind(kind sep2.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.byKind[kind] {
		delete(s.byID, key)
	}
	delete(s.byKind, kind)
}

// ClearChildrenOf removes every stored resource of kind whose
// identifier's immediate parent is parent, leaving other parents'
// children of the same kind untouched. Used to refresh one list's
// contents without disturbing sibling lists of the same kind.
func (s *Store) ClearChildrenOf(kind sep2.Kind, parent ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byKind[kind]
	if !ok {
		return
	}
	for key, v := range m {
		if v.ID.Parent().Equal(parent) {
			delete(m, key)
			delete(s.byID, key)
		}
	}
}

// GetByID looks up the exact identifier.
func (s *Store) GetByID(id ID) (*Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id.Key()]
	return v, ok
}

// GetByKind returns every stored resource of kind, in no particular
// order.
func (s *Store) GetByKind(kind sep2.Kind) []*Stored {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Stored, 0, len(s.byKind[kind]))
	for _, v := range s.byKind[kind] {
		out = append(out, v)
	}
	return out
}

// GetDescendantsOf returns every stored resource of kind whose
// identifier is a descendant of ancestor. The walk tolerates missing
// intermediate levels: it checks the id suffix, not store linkage.
func (s *Store) GetDescendantsOf(kind sep2.Kind, ancestor ID) []*Stored {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Stored
	for _, v := range s.byKind[kind] {
		if v.ID.IsDescendantOf(ancestor) {
			out = append(out, v)
		}
	}
	return out
}

// GetAncestorOf returns the single stored resource of kind that is an
// ancestor of child, or false if none is stored.
func (s *Store) GetAncestorOf(kind sep2.Kind, child ID) (*Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 1; i < len(child); i++ {
		candidate := child[i:]
		if v, ok := s.byID[candidate.Key()]; ok && v.Kind == kind {
			return v, true
		}
	}
	return nil, false
}

// Resources lazily enumerates every stored resource. The slice is a
// snapshot taken under the read lock.
func (s *Store) Resources() []*Stored {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Stored, 0, len(s.byID))
	for _, v := range s.byID {
		out = append(out, v)
	}
	return out
}

// String renders an identifier for logging/errors.
func (id ID) String() string {
	return fmt.Sprintf("%v", []string(id))
}
