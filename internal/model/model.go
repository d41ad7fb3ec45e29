// Package model provides the in-memory geometric object store. The live
// ambient model is one Store instance; proof verification constructs and
// discards its own independent Store per obligation, scoped to the tool's
// private primitive catalogue, so background verification never touches the
// ambient model.
package model

import (
	"sync"

	"github.com/scape1989/geo-logic/internal/geom"
	"github.com/scape1989/geo-logic/internal/tool"
)

// Store is an append-only object store: objects are created from numeric
// witnesses and never removed or rebound. It implements tool.Model.
type Store struct {
	mu      sync.RWMutex
	objs    []geom.Witness
	catalog *tool.Registry
}

// New creates an empty store scoped to the given primitive catalogue.
// The catalogue may be nil for stores that only hold objects.
func New(catalog *tool.Registry) *Store {
	return &Store{catalog: catalog}
}

// AddObjects creates one object per witness and returns their ids in order.
func (s *Store) AddObjects(ws []geom.Witness) []tool.GlobalID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]tool.GlobalID, len(ws))
	for i, w := range ws {
		ids[i] = tool.GlobalID(len(s.objs))
		s.objs = append(s.objs, w.Clone())
	}
	return ids
}

// AddObject creates a single object.
func (s *Store) AddObject(w geom.Witness) tool.GlobalID {
	return s.AddObjects([]geom.Witness{w})[0]
}

// Witness returns the numeric witness of an object. Unresolved or unknown
// ids return false.
func (s *Store) Witness(id tool.GlobalID) (geom.Witness, bool) {
	if !id.Resolved() {
		return geom.Witness{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if int(id) >= len(s.objs) {
		return geom.Witness{}, false
	}
	return s.objs[id].Clone(), true
}

// Catalog returns the primitive catalogue this store is scoped to.
func (s *Store) Catalog() *tool.Registry { return s.catalog }

// Len returns the number of objects in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objs)
}

// Witnesses returns a deep copy of all object witnesses in id order.
// Used by observers that need a consistent snapshot, e.g. to assert that a
// verification pass left the ambient model untouched.
func (s *Store) Witnesses() []geom.Witness {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]geom.Witness, len(s.objs))
	for i, w := range s.objs {
		out[i] = w.Clone()
	}
	return out
}
