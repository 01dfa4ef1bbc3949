package ledger

import (
	"context"
	"testing"
	"time"

	"yawmiya/internal/core"
	"yawmiya/internal/store"
	"yawmiya/internal/store/memory"
)

func seedUser(t *testing.T, records *memory.Store, username string) core.UserProfile {
	t.Helper()
	u, err := records.CreateUserProfile(context.Background(), core.UserProfile{
		Username: username, Email: username + "@example.com", Deductions: 25, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestMonthSummaryCacheInvalidation(t *testing.T) {
	records := memory.New()
	svc := NewService(records)
	ctx := context.Background()
	ym := core.YearMonth{Year: 2025, Month: 6}

	u := seedUser(t, records, "worker")
	if _, err := records.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 1), CashAmount: 100}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	s1, err := svc.MonthSummary(ctx, u.ID, ym, false)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s1.TotalCash != 100 {
		t.Fatalf("TotalCash = %v, want 100", s1.TotalCash)
	}

	// A write behind the cache's back is invisible until invalidation.
	if _, err := records.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 2), CashAmount: 50}); err != nil {
		t.Fatalf("entry 2: %v", err)
	}
	s2, _ := svc.MonthSummary(ctx, u.ID, ym, false)
	if s2.TotalCash != 100 {
		t.Fatalf("cached TotalCash = %v, want stale 100", s2.TotalCash)
	}

	svc.InvalidateWindow(u.ID, ym)
	s3, _ := svc.MonthSummary(ctx, u.ID, ym, false)
	if s3.TotalCash != 150 {
		t.Errorf("TotalCash after invalidation = %v, want 150", s3.TotalCash)
	}
}

func TestMonthSummaryAdminRequiresProfile(t *testing.T) {
	records := memory.New()
	svc := NewService(records)
	ctx := context.Background()
	ym := core.YearMonth{Year: 2025, Month: 6}

	// Worker view of an unknown user degrades to zeros.
	if _, err := svc.MonthSummary(ctx, "ghost", ym, false); err != nil {
		t.Fatalf("worker view: %v", err)
	}
	// Admin view needs the profile for the fixed deduction figure.
	if _, err := svc.MonthSummary(ctx, "ghost", ym, true); !core.IsNotFound(err) {
		t.Fatalf("admin view: got %v, want NotFoundError", err)
	}

	u := seedUser(t, records, "worker")
	s, err := svc.MonthSummary(ctx, u.ID, ym, true)
	if err != nil {
		t.Fatalf("admin view with profile: %v", err)
	}
	if s.FixedDeductions != 25 {
		t.Errorf("FixedDeductions = %v, want 25", s.FixedDeductions)
	}
}

func TestFleetSummaryCacheInvalidation(t *testing.T) {
	records := memory.New()
	svc := NewService(records)
	ctx := context.Background()
	ym := core.YearMonth{Year: 2025, Month: 6}

	u := seedUser(t, records, "worker")
	if _, err := records.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 1), CashAmount: 100}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	f1, err := svc.FleetSummary(ctx, ym)
	if err != nil {
		t.Fatalf("fleet: %v", err)
	}
	if f1.TotalGross != 100 {
		t.Fatalf("TotalGross = %v, want 100", f1.TotalGross)
	}

	if _, err := records.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 2), CashAmount: 60}); err != nil {
		t.Fatalf("entry 2: %v", err)
	}
	f2, _ := svc.FleetSummary(ctx, ym)
	if f2.TotalGross != 100 {
		t.Fatalf("cached TotalGross = %v, want stale 100", f2.TotalGross)
	}

	svc.InvalidateWindow(u.ID, ym)
	f3, _ := svc.FleetSummary(ctx, ym)
	if f3.TotalGross != 160 {
		t.Errorf("TotalGross after invalidation = %v, want 160", f3.TotalGross)
	}
}

func TestStats(t *testing.T) {
	records := memory.New()
	svc := NewService(records)
	ctx := context.Background()

	u := seedUser(t, records, "worker")
	entries := []core.DailyEntry{
		{UserID: u.ID, Date: core.NewDate(2025, 6, 1), CashAmount: 100, NetworkAmount: 50, PurchasesAmount: 20, AdvanceAmount: 10},
		{UserID: u.ID, Date: core.NewDate(2025, 6, 2), CashAmount: 200, AdvanceAmount: 15},
	}
	for _, e := range entries {
		if _, err := records.UpsertEntry(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	st, err := svc.Stats(ctx, store.Filter{UserID: u.ID, YearMonth: core.YearMonth{Year: 2025, Month: 6}})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalEntries != 2 {
		t.Errorf("TotalEntries = %d, want 2", st.TotalEntries)
	}
	if st.TotalIncome != 350 || st.TotalRemaining != 330 {
		t.Errorf("income/remaining = %v/%v, want 350/330", st.TotalIncome, st.TotalRemaining)
	}
	// Same-day advances only; the cumulative monthly record never mixes in.
	if st.SameDayAdvances != 25 {
		t.Errorf("SameDayAdvances = %v, want 25", st.SameDayAdvances)
	}
}

func TestSystemStats(t *testing.T) {
	records := memory.New()
	svc := NewService(records)
	ctx := context.Background()
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	u := seedUser(t, records, "worker")
	if _, err := records.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 1), CashAmount: 100}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, err := records.SetMonthlyAdvance(ctx, u.ID, core.YearMonth{Year: 2025, Month: 6}, 300); err != nil {
		t.Fatalf("advance: %v", err)
	}

	st, err := svc.SystemStats(ctx, now)
	if err != nil {
		t.Fatalf("system stats: %v", err)
	}
	if st.TotalUsers != 1 || st.TotalEntries != 1 || st.TotalAdvances != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", st.TotalUsers, st.TotalEntries, st.TotalAdvances)
	}
	if len(st.RecentEntries) != 1 {
		t.Errorf("RecentEntries = %d, want 1", len(st.RecentEntries))
	}
	if st.MonthlyStats.TotalIncome != 100 {
		t.Errorf("MonthlyStats.TotalIncome = %v, want 100", st.MonthlyStats.TotalIncome)
	}
}
