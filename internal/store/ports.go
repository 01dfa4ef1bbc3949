// Package store defines the record-store boundary the engine reads and
// writes through. Implementations must guarantee per-record atomicity
// (a concurrent reader sees the old or the new record, never a torn one)
// and exclusive access for the duration of a reset; cross-record snapshot
// isolation is explicitly not promised. Same-key writers are serialized
// with last-write-wins semantics.
package store

import (
	"context"

	"yawmiya/internal/core"
)

// Scope selects what a reset clears.
type Scope string

const (
	// ScopeData clears entries, advances and deductions but keeps profiles.
	ScopeData Scope = "data"
	// ScopeComplete clears everything including profiles.
	ScopeComplete Scope = "complete"
)

// IsValid reports whether the scope is one of the two reset variants.
func (s Scope) IsValid() bool {
	return s == ScopeData || s == ScopeComplete
}

// Filter narrows list reads. Zero values mean "all": an empty UserID spans
// users, a zero YearMonth spans months.
type Filter struct {
	UserID    string
	YearMonth core.YearMonth
}

// Matches reports whether a (userID, date) pair passes the filter.
func (f Filter) Matches(userID string, d core.Date) bool {
	if f.UserID != "" && f.UserID != userID {
		return false
	}
	if !f.YearMonth.IsZero() && !f.YearMonth.Contains(d) {
		return false
	}
	return true
}

// RecordStore persists the four entity kinds. The engine owns none of
// them; it operates on per-request snapshots fetched through this
// interface.
type RecordStore interface {
	// ListEntries returns daily entries matching the filter.
	ListEntries(ctx context.Context, f Filter) ([]core.DailyEntry, error)
	// GetEntry returns the entry or a NotFoundError.
	GetEntry(ctx context.Context, id string) (core.DailyEntry, error)
	// UpsertEntry writes the entry keyed by its ID, creating or replacing.
	// The (user, date) uniqueness check happens at the mutation gateway;
	// the store enforces it again as a backstop and returns a
	// ConflictError when a different entry occupies the slot.
	UpsertEntry(ctx context.Context, e core.DailyEntry) (core.DailyEntry, error)
	// DeleteEntry removes the entry or returns a NotFoundError.
	DeleteEntry(ctx context.Context, id string) error

	// GetMonthlyAdvance returns the record for (user, month); ok is false
	// when absent, which callers treat as zero.
	GetMonthlyAdvance(ctx context.Context, userID string, ym core.YearMonth) (core.MonthlyAdvance, bool, error)
	// SetMonthlyAdvance replaces the cumulative figure, creating the row
	// lazily. Replace semantics, never additive.
	SetMonthlyAdvance(ctx context.Context, userID string, ym core.YearMonth, total float64) (core.MonthlyAdvance, error)
	// ListMonthlyAdvances returns advance records matching the filter.
	ListMonthlyAdvances(ctx context.Context, f Filter) ([]core.MonthlyAdvance, error)

	// ListDeductions returns deduction events matching the filter.
	ListDeductions(ctx context.Context, f Filter) ([]core.Deduction, error)
	// AddDeduction appends one immutable deduction event.
	AddDeduction(ctx context.Context, d core.Deduction) (core.Deduction, error)

	// GetUserProfile returns the profile or a NotFoundError.
	GetUserProfile(ctx context.Context, id string) (core.UserProfile, error)
	// FindUserByEmail returns the profile with the given email, or a
	// NotFoundError. Emails are unique.
	FindUserByEmail(ctx context.Context, email string) (core.UserProfile, error)
	// FindUserByUsername returns the profile with the given username, or a
	// NotFoundError. Usernames are unique.
	FindUserByUsername(ctx context.Context, username string) (core.UserProfile, error)
	// ListUserProfiles returns every profile.
	ListUserProfiles(ctx context.Context) ([]core.UserProfile, error)
	// CountUserProfiles returns the number of profiles. The registration
	// collaborator uses it to grant the first registrant admin.
	CountUserProfiles(ctx context.Context) (int, error)
	// CreateUserProfile inserts a profile, returning a ConflictError when
	// the username or email is taken.
	CreateUserProfile(ctx context.Context, u core.UserProfile) (core.UserProfile, error)
	// UpdateUserProfile replaces the profile keyed by its ID.
	UpdateUserProfile(ctx context.Context, u core.UserProfile) (core.UserProfile, error)
	// DeleteUserProfile removes the profile and cascades deletion of the
	// user's entries, advances and deductions.
	DeleteUserProfile(ctx context.Context, id string) error

	// ResetScope atomically clears the given scope: either the full scope
	// is gone or nothing is. Implementations hold exclusive access to the
	// scope while it runs.
	ResetScope(ctx context.Context, scope Scope) error
}
