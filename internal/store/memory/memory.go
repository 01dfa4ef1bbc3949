// Package memory is the in-process record store. It backs tests and the
// DATA_BACKEND=memory mode; a single mutex serializes writers, which gives
// the per-record atomicity and reset exclusivity the store contract asks
// for (last write wins on the same key).
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"yawmiya/internal/core"
	"yawmiya/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	entries   map[string]core.DailyEntry     // by entry ID
	entrySlot map[string]string              // "userID|date" -> entry ID
	advances  map[string]core.MonthlyAdvance // "userID|yearMonth"
	deducts   []core.Deduction
	users     map[string]core.UserProfile // by user ID
}

var _ store.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{
		entries:   make(map[string]core.DailyEntry),
		entrySlot: make(map[string]string),
		advances:  make(map[string]core.MonthlyAdvance),
		users:     make(map[string]core.UserProfile),
	}
}

func slotKey(userID string, d core.Date) string {
	return userID + "|" + d.String()
}

func advanceKey(userID string, ym core.YearMonth) string {
	return userID + "|" + ym.String()
}

func (s *Store) ListEntries(_ context.Context, f store.Filter) ([]core.DailyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.DailyEntry
	for _, e := range s.entries {
		if f.Matches(e.UserID, e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, id string) (core.DailyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return core.DailyEntry{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	return e, nil
}

func (s *Store) UpsertEntry(_ context.Context, e core.DailyEntry) (core.DailyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreatedAt = now
	} else if prev, ok := s.entries[e.ID]; ok {
		e.CreatedAt = prev.CreatedAt
		// The slot may move when an admin edits the date.
		delete(s.entrySlot, slotKey(prev.UserID, prev.Date))
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	key := slotKey(e.UserID, e.Date)
	if otherID, ok := s.entrySlot[key]; ok && otherID != e.ID {
		// Backstop for the gateway's uniqueness check.
		return core.DailyEntry{}, &core.ConflictError{Resource: "entry", Message: "an entry already exists for this date"}
	}
	s.entrySlot[key] = e.ID
	s.entries[e.ID] = e
	return e, nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return &core.NotFoundError{Resource: "entry", ID: id}
	}
	delete(s.entries, id)
	delete(s.entrySlot, slotKey(e.UserID, e.Date))
	return nil
}

func (s *Store) GetMonthlyAdvance(_ context.Context, userID string, ym core.YearMonth) (core.MonthlyAdvance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.advances[advanceKey(userID, ym)]
	return a, ok, nil
}

func (s *Store) SetMonthlyAdvance(_ context.Context, userID string, ym core.YearMonth, total float64) (core.MonthlyAdvance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := advanceKey(userID, ym)
	a, ok := s.advances[key]
	if !ok {
		a = core.MonthlyAdvance{
			ID:        uuid.NewString(),
			UserID:    userID,
			YearMonth: ym,
			CreatedAt: now,
		}
	}
	a.TotalAdvances = total
	a.UpdatedAt = now
	s.advances[key] = a
	return a, nil
}

func (s *Store) ListMonthlyAdvances(_ context.Context, f store.Filter) ([]core.MonthlyAdvance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.MonthlyAdvance
	for _, a := range s.advances {
		if f.UserID != "" && f.UserID != a.UserID {
			continue
		}
		if !f.YearMonth.IsZero() && f.YearMonth != a.YearMonth {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListDeductions(_ context.Context, f store.Filter) ([]core.Deduction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Deduction
	for _, d := range s.deducts {
		if f.Matches(d.UserID, d.Date) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) AddDeduction(_ context.Context, d core.Deduction) (core.Deduction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.deducts = append(s.deducts, d)
	return d, nil
}

func (s *Store) GetUserProfile(_ context.Context, id string) (core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.UserProfile{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.UserProfile{}, &core.NotFoundError{Resource: "user"}
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.UserProfile{}, &core.NotFoundError{Resource: "user"}
}

func (s *Store) ListUserProfiles(_ context.Context) ([]core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.UserProfile, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) CountUserProfiles(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *Store) CreateUserProfile(_ context.Context, u core.UserProfile) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return core.UserProfile{}, &core.ConflictError{Resource: "user", Message: "username already taken"}
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return core.UserProfile{}, &core.ConflictError{Resource: "user", Message: "email already registered"}
		}
	}
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUserProfile(_ context.Context, u core.UserProfile) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[u.ID]
	if !ok {
		return core.UserProfile{}, &core.NotFoundError{Resource: "user", ID: u.ID}
	}
	for id, existing := range s.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return core.UserProfile{}, &core.ConflictError{Resource: "user", Message: "username already taken"}
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return core.UserProfile{}, &core.ConflictError{Resource: "user", Message: "email already registered"}
		}
	}
	u.CreatedAt = prev.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) DeleteUserProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return &core.NotFoundError{Resource: "user", ID: id}
	}
	delete(s.users, id)

	// Cascade the user's financial records.
	for eid, e := range s.entries {
		if e.UserID == id {
			delete(s.entries, eid)
			delete(s.entrySlot, slotKey(e.UserID, e.Date))
		}
	}
	for key, a := range s.advances {
		if a.UserID == id {
			delete(s.advances, key)
		}
	}
	kept := s.deducts[:0]
	for _, d := range s.deducts {
		if d.UserID != id {
			kept = append(kept, d)
		}
	}
	s.deducts = kept
	return nil
}

// ResetScope clears the scope under the write lock, so no mutation can
// race with an in-flight reset.
func (s *Store) ResetScope(_ context.Context, scope store.Scope) error {
	if !scope.IsValid() {
		return &core.ValidationError{Field: "scope", Message: "unknown reset scope"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]core.DailyEntry)
	s.entrySlot = make(map[string]string)
	s.advances = make(map[string]core.MonthlyAdvance)
	s.deducts = nil
	if scope == store.ScopeComplete {
		s.users = make(map[string]core.UserProfile)
	}
	return nil
}
