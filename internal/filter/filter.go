// Package filter holds the active search filter for the accommodation
// listing: which college, accommodation type and gender the user selected.
// The selection is persisted to durable storage after every change and
// restored on startup.
package filter

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/iliyamo/student-stay/internal/apperr"
	"github.com/iliyamo/student-stay/internal/kv"
	"github.com/iliyamo/student-stay/internal/model"
)

// StorageKey is the fixed key the selection is persisted under.
const StorageKey = "hostelFilters"

// Selection is the user's filter. An empty field matches everything.
type Selection struct {
	College           string                  `json:"college"`
	AccommodationType model.AccommodationType `json:"accommodationType"`
	Gender            model.Gender            `json:"gender"`
}

// IsEmpty reports whether no field constrains the result.
func (s Selection) IsEmpty() bool {
	return s.College == "" && s.AccommodationType == "" && s.Gender == ""
}

// Matches reports whether a satisfies every non-empty field of s. A college
// matches entries that list it explicitly in their distance map; selecting
// the "Other" fallback matches every entry. The "Other" distance is only a
// display fallback and never admits an entry under a named college.
func (s Selection) Matches(a model.Accommodation) bool {
	if s.College != "" && s.College != model.OtherCollege {
		if _, ok := a.Distance[s.College]; !ok {
			return false
		}
	}
	if s.AccommodationType != "" && a.Type != s.AccommodationType {
		return false
	}
	if s.Gender != "" && a.Gender != s.Gender {
		return false
	}
	return true
}

// Apply returns the entries of items matching sel, in their original order.
func Apply(sel Selection, items []model.Accommodation) []model.Accommodation {
	out := make([]model.Accommodation, 0, len(items))
	for _, a := range items {
		if sel.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// ParseType accepts "hostel", "pg" or "" (no constraint).
func ParseType(v string) (model.AccommodationType, error) {
	t := model.AccommodationType(strings.ToLower(strings.TrimSpace(v)))
	if t != "" && !t.Valid() {
		return "", apperr.Validation(fmt.Sprintf("unknown accommodation type %q", v))
	}
	return t, nil
}

// ParseGender accepts "boys", "girls" or "" (no constraint).
func ParseGender(v string) (model.Gender, error) {
	g := model.Gender(strings.ToLower(strings.TrimSpace(v)))
	if g != "" && g != model.GenderBoys && g != model.GenderGirls {
		return "", apperr.Validation(fmt.Sprintf("unknown gender %q", v))
	}
	return g, nil
}

// Store is the single source of truth for the active selection.
type Store struct {
	mu       sync.Mutex
	sel      Selection
	kv       kv.Store
	restored bool
}

// NewStore restores the persisted selection from st. A non-empty
// collegeHint, such as a college passed on the command line or in a link,
// overrides the persisted college.
func NewStore(st kv.Store, collegeHint string) *Store {
	s := &Store{kv: st}
	s.restore(strings.TrimSpace(collegeHint))
	return s
}

func (s *Store) restore(collegeHint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok, err := s.kv.Get(StorageKey)
	switch {
	case err != nil:
		log.Printf("filter: restore failed: %v", err)
	case ok:
		var sel Selection
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			log.Printf("filter: discarding unreadable selection: %v", err)
		} else {
			s.sel = sel
		}
	}
	s.restored = true
	if collegeHint != "" && collegeHint != s.sel.College {
		s.sel.College = collegeHint
		s.persistLocked()
	}
}

// Selection returns a copy of the current selection.
func (s *Store) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// SetCollege replaces the college; "" clears it.
func (s *Store) SetCollege(name string) {
	s.mutate(func(sel *Selection) { sel.College = strings.TrimSpace(name) })
}

// SetAccommodationType replaces the type; "" clears it.
func (s *Store) SetAccommodationType(t model.AccommodationType) error {
	if t != "" && !t.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown accommodation type %q", t))
	}
	s.mutate(func(sel *Selection) { sel.AccommodationType = t })
	return nil
}

// SetGender replaces the gender; "" clears it.
func (s *Store) SetGender(g model.Gender) error {
	if g != "" && g != model.GenderBoys && g != model.GenderGirls {
		return apperr.Validation(fmt.Sprintf("unknown gender %q", g))
	}
	s.mutate(func(sel *Selection) { sel.Gender = g })
	return nil
}

// Replace sets all three fields at once and persists once.
func (s *Store) Replace(sel Selection) error {
	if sel.AccommodationType != "" && !sel.AccommodationType.Valid() {
		return apperr.Validation(fmt.Sprintf("unknown accommodation type %q", sel.AccommodationType))
	}
	if sel.Gender != "" && sel.Gender != model.GenderBoys && sel.Gender != model.GenderGirls {
		return apperr.Validation(fmt.Sprintf("unknown gender %q", sel.Gender))
	}
	s.mutate(func(cur *Selection) { *cur = sel })
	return nil
}

func (s *Store) mutate(fn func(*Selection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.sel)
	if s.restored {
		s.persistLocked()
	}
}

// Apply filters items with the current selection.
func (s *Store) Apply(items []model.Accommodation) []model.Accommodation {
	return Apply(s.Selection(), items)
}

// Persist writes the current selection. Failures are logged, never returned:
// the in-memory filter keeps working without storage.
func (s *Store) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.sel)
	if err != nil {
		log.Printf("filter: encode selection: %v", err)
		return
	}
	if err := s.kv.Set(StorageKey, string(raw)); err != nil {
		log.Printf("filter: persist failed: %v", err)
	}
}

// Reset clears every field and deletes the persisted record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = Selection{}
	if err := s.kv.Remove(StorageKey); err != nil {
		log.Printf("filter: remove persisted selection: %v", err)
	}
}
