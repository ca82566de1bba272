package resource

import "github.com/cactuslab/cactus-client-go/internal/sep2"

// Annotation carries the human alias and tag sets for one stored
// identifier. Annotations live in a side table keyed by identifier so
// that Upsert of the payload preserves them cheaply; the store never
// creates one implicitly, callers create it on demand.
type Annotation struct {
	Alias string
	Tags  map[string]map[string]bool // namespace -> tag -> present
}

func newAnnotation() *Annotation {
	return &Annotation{Tags: map[string]map[string]bool{}}
}

// annotation returns (creating if necessary) the annotation for id.
// Callers must hold s.mu.
func (s *Store) annotation(id ID) *Annotation {
	key := id.Key()
	a, ok := s.annotations[key]
	if !ok {
		a = newAnnotation()
		s.annotations[key] = a
	}
	return a
}

// SetAlias records a human alias for id.
func (s *Store) SetAlias(id ID, alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotation(id).Alias = alias
}

// Alias returns the alias recorded for id, if any.
func (s *Store) Alias(id ID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.annotations[id.Key()]
	if !ok || a.Alias == "" {
		return "", false
	}
	return a.Alias, true
}

// FindByAlias finds the single stored resource of kind carrying
// alias. Returns false if none; when more than one resource shares an
// alias (a test-authoring mistake) the first match found is returned.
func (s *Store) FindByAlias(kind sep2.Kind, alias string) (*Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, stored := range s.byKind[kind] {
		a, ok := s.annotations[key]
		if ok && a.Alias == alias {
			return stored, true
		}
	}
	return nil, false
}

// AddTag records that id carries tag under namespace.
func (s *Store) AddTag(id ID, namespace, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.annotation(id)
	ns, ok := a.Tags[namespace]
	if !ok {
		ns = map[string]bool{}
		a.Tags[namespace] = ns
	}
	ns[tag] = true
}

// HasTag reports whether id carries tag under namespace.
func (s *Store) HasTag(id ID, namespace, tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.annotations[id.Key()]
	if !ok {
		return false
	}
	ns, ok := a.Tags[namespace]
	if !ok {
		return false
	}
	return ns[tag]
}

// Tags returns a snapshot of every tag recorded for id under
// namespace.
func (s *Store) Tags(id ID, namespace string) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[string]bool{}
	a, ok := s.annotations[id.Key()]
	if !ok {
		return out
	}
	for k, v := range a.Tags[namespace] {
		out[k] = v
	}
	return out
}
