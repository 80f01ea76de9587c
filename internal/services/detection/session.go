package detection

import (
	"sync"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
)

// Session owns the caches of one frame's detection results. Opids are
// valid only against the generation that produced them: every Refresh
// replaces the caches wholesale and bumps the generation, so stale
// lookups are detected and rejected instead of silently resolving to a
// wrong element.
type Session struct {
	mu         sync.RWMutex
	generation uint64
	doc        *dom.Document
	forms      map[string]*DetectedForm
	fields     map[string]*DetectedField
	stats      FilterStats
}

// NewSession creates an empty session at generation zero.
func NewSession() *Session {
	return &Session{
		forms:  make(map[string]*DetectedForm),
		fields: make(map[string]*DetectedField),
	}
}

// Refresh replaces the cached detection result and returns the new
// generation. There is no incremental diffing: prior opids are all
// invalidated.
func (s *Session) Refresh(doc *dom.Document, forms []*DetectedForm, stats FilterStats) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.doc = doc
	s.stats = stats
	s.forms = make(map[string]*DetectedForm, len(forms))
	s.fields = make(map[string]*DetectedField)
	for _, form := range forms {
		s.forms[form.Opid] = form
		for _, f := range form.Fields {
			s.fields[f.Opid] = f
		}
	}
	return s.generation
}

// Generation returns the current generation counter.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Stats returns the quality-filter stats of the current generation.
func (s *Session) Stats() FilterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Forms returns the cached forms of the current generation.
func (s *Session) Forms() []*DetectedForm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*DetectedForm, 0, len(s.forms))
	for _, f := range s.forms {
		out = append(out, f)
	}
	return out
}

// Field resolves an opid recorded at the given generation. A stale
// generation is an error; a missing opid within a current generation
// returns nil so callers can attempt attribute-based recovery.
func (s *Session) Field(generation uint64, opid string) (*DetectedField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if generation != s.generation {
		return nil, domain.ErrStaleGeneration(generation, s.generation)
	}
	return s.fields[opid], nil
}

// Document returns the document of the current generation.
func (s *Session) Document() *dom.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}
