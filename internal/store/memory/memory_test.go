package memory

import (
	"context"
	"testing"

	"yawmiya/internal/core"
	"yawmiya/internal/store"
)

func TestUpsertEntryAssignsIdentity(t *testing.T) {
	s := New()
	ctx := context.Background()

	e, err := s.UpsertEntry(ctx, core.DailyEntry{UserID: "u1", Date: core.NewDate(2025, 6, 1), CashAmount: 10})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		t.Errorf("identity not assigned: %+v", e)
	}

	// Re-upserting by ID keeps CreatedAt and bumps UpdatedAt.
	e.CashAmount = 20
	updated, err := s.UpsertEntry(ctx, e)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CreatedAt != e.CreatedAt {
		t.Error("CreatedAt changed on update")
	}
	if updated.CashAmount != 20 {
		t.Errorf("CashAmount = %v, want 20", updated.CashAmount)
	}
}

func TestUpsertEntrySlotBackstop(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.UpsertEntry(ctx, core.DailyEntry{UserID: "u1", Date: core.NewDate(2025, 6, 1)}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := s.UpsertEntry(ctx, core.DailyEntry{UserID: "u1", Date: core.NewDate(2025, 6, 1)}); !core.IsConflict(err) {
		t.Fatalf("same slot: got %v, want ConflictError", err)
	}
	// A different user may use the same date.
	if _, err := s.UpsertEntry(ctx, core.DailyEntry{UserID: "u2", Date: core.NewDate(2025, 6, 1)}); err != nil {
		t.Fatalf("other user same date: %v", err)
	}
}

func TestListEntriesFilter(t *testing.T) {
	s := New()
	ctx := context.Background()

	seed := []core.DailyEntry{
		{UserID: "u1", Date: core.NewDate(2025, 6, 1)},
		{UserID: "u1", Date: core.NewDate(2025, 7, 1)},
		{UserID: "u2", Date: core.NewDate(2025, 6, 2)},
	}
	for _, e := range seed {
		if _, err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter store.Filter
		want   int
	}{
		{"all", store.Filter{}, 3},
		{"by user", store.Filter{UserID: "u1"}, 2},
		{"by month", store.Filter{YearMonth: core.YearMonth{Year: 2025, Month: 6}}, 2},
		{"user and month", store.Filter{UserID: "u1", YearMonth: core.YearMonth{Year: 2025, Month: 6}}, 1},
		{"empty month", store.Filter{YearMonth: core.YearMonth{Year: 2024, Month: 1}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListEntries(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestMonthlyAdvanceReplace(t *testing.T) {
	s := New()
	ctx := context.Background()
	ym := core.YearMonth{Year: 2025, Month: 6}

	if _, ok, err := s.GetMonthlyAdvance(ctx, "u1", ym); err != nil || ok {
		t.Fatalf("absent advance: ok=%v err=%v", ok, err)
	}

	first, err := s.SetMonthlyAdvance(ctx, "u1", ym, 100)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	second, err := s.SetMonthlyAdvance(ctx, "u1", ym, 300)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if second.ID != first.ID {
		t.Error("replace created a new record")
	}
	if second.TotalAdvances != 300 {
		t.Errorf("TotalAdvances = %v, want 300 (replace, not 400)", second.TotalAdvances)
	}
}

func TestDeleteUserProfileCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	ym := core.YearMonth{Year: 2025, Month: 6}

	u, err := s.CreateUserProfile(ctx, core.UserProfile{Username: "worker", Email: "w@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 1)}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, err := s.SetMonthlyAdvance(ctx, u.ID, ym, 100); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := s.AddDeduction(ctx, core.Deduction{UserID: u.ID, Date: core.NewDate(2025, 6, 1), Amount: 5, Reason: "x"}); err != nil {
		t.Fatalf("deduction: %v", err)
	}

	if err := s.DeleteUserProfile(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if entries, _ := s.ListEntries(ctx, store.Filter{}); len(entries) != 0 {
		t.Errorf("entries survived cascade: %d", len(entries))
	}
	if _, ok, _ := s.GetMonthlyAdvance(ctx, u.ID, ym); ok {
		t.Error("advance survived cascade")
	}
	if deductions, _ := s.ListDeductions(ctx, store.Filter{}); len(deductions) != 0 {
		t.Errorf("deductions survived cascade: %d", len(deductions))
	}
}

func TestResetScope(t *testing.T) {
	seedStore := func(t *testing.T) *Store {
		t.Helper()
		s := New()
		ctx := context.Background()
		u, err := s.CreateUserProfile(ctx, core.UserProfile{Username: "worker", Email: "w@example.com"})
		if err != nil {
			t.Fatalf("user: %v", err)
		}
		if _, err := s.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 1)}); err != nil {
			t.Fatalf("entry: %v", err)
		}
		if _, err := s.AddDeduction(ctx, core.Deduction{UserID: u.ID, Date: core.NewDate(2025, 6, 1), Amount: 5, Reason: "x"}); err != nil {
			t.Fatalf("deduction: %v", err)
		}
		return s
	}
	ctx := context.Background()

	s := seedStore(t)
	if err := s.ResetScope(ctx, store.Scope("bogus")); !core.IsValidation(err) {
		t.Fatalf("bogus scope: got %v, want ValidationError", err)
	}

	if err := s.ResetScope(ctx, store.ScopeData); err != nil {
		t.Fatalf("data reset: %v", err)
	}
	if entries, _ := s.ListEntries(ctx, store.Filter{}); len(entries) != 0 {
		t.Error("data reset left entries")
	}
	if n, _ := s.CountUserProfiles(ctx); n != 1 {
		t.Errorf("data reset touched users: %d", n)
	}

	s = seedStore(t)
	if err := s.ResetScope(ctx, store.ScopeComplete); err != nil {
		t.Fatalf("complete reset: %v", err)
	}
	if n, _ := s.CountUserProfiles(ctx); n != 0 {
		t.Errorf("complete reset left users: %d", n)
	}
}
