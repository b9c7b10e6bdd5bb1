package catalog

import "sync/atomic"

// Store holds the current catalog. Replace swaps it wholesale; a Catalog
// obtained from Load stays valid after a replace and must not be mutated.
type Store struct {
	cur atomic.Pointer[Catalog]
}

// NewStore returns a store seeded with c (an empty catalog when nil).
func NewStore(c Catalog) *Store {
	s := &Store{}
	s.Replace(c)
	return s
}

// Load returns the current catalog.
func (s *Store) Load() Catalog {
	if p := s.cur.Load(); p != nil {
		return *p
	}
	return Catalog{}
}

// Replace installs c as the current catalog and returns the previous one.
func (s *Store) Replace(c Catalog) Catalog {
	if c == nil {
		c = Catalog{}
	}
	old := s.cur.Swap(&c)
	if old == nil {
		return Catalog{}
	}
	return *old
}
