package ledger

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"yawmiya/internal/core"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEntryDayTotal(t *testing.T) {
	tests := []struct {
		name          string
		entry         core.DailyEntry
		wantTotal     float64
		wantRemaining float64
	}{
		{
			name:          "cash and network sum",
			entry:         core.DailyEntry{CashAmount: 100, NetworkAmount: 50, PurchasesAmount: 20},
			wantTotal:     150,
			wantRemaining: 130,
		},
		{
			name:          "zero entry",
			entry:         core.DailyEntry{},
			wantTotal:     0,
			wantRemaining: 0,
		},
		{
			name:          "purchases exceed income",
			entry:         core.DailyEntry{CashAmount: 10, PurchasesAmount: 25},
			wantTotal:     10,
			wantRemaining: -15,
		},
		{
			name:          "advance does not change day figures",
			entry:         core.DailyEntry{CashAmount: 100, AdvanceAmount: 40},
			wantTotal:     100,
			wantRemaining: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EntryDayTotal(tt.entry)
			if !almostEqual(got.Total, tt.wantTotal) {
				t.Errorf("Total = %v, want %v", got.Total, tt.wantTotal)
			}
			if !almostEqual(got.Remaining, tt.wantRemaining) {
				t.Errorf("Remaining = %v, want %v", got.Remaining, tt.wantRemaining)
			}
		})
	}
}

func TestSummarizeMonth(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 6}
	entries := []core.DailyEntry{
		{UserID: "u1", Date: core.NewDate(2025, 6, 1), CashAmount: 100, NetworkAmount: 50, PurchasesAmount: 20},
		{UserID: "u1", Date: core.NewDate(2025, 6, 15), CashAmount: 200},
		// Outside the window or for another user, must be ignored.
		{UserID: "u1", Date: core.NewDate(2025, 7, 1), CashAmount: 999},
		{UserID: "u2", Date: core.NewDate(2025, 6, 1), CashAmount: 999},
	}
	advance := &core.MonthlyAdvance{UserID: "u1", YearMonth: ym, TotalAdvances: 300}
	deductions := []core.Deduction{
		{UserID: "u1", Date: core.NewDate(2025, 6, 10), Amount: 50, Reason: "damage"},
		{UserID: "u2", Date: core.NewDate(2025, 6, 10), Amount: 500, Reason: "other user"},
		{UserID: "u1", Date: core.NewDate(2025, 5, 10), Amount: 500, Reason: "other month"},
	}
	profile := &core.UserProfile{ID: "u1", Username: "worker1", Deductions: 25}

	s := SummarizeMonth("u1", ym, entries, advance, deductions, profile)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"TotalCash", s.TotalCash, 300},
		{"TotalNetwork", s.TotalNetwork, 50},
		{"TotalPurchases", s.TotalPurchases, 20},
		{"TotalAmount", s.TotalAmount, 350},
		{"Remaining", s.Remaining, 330},
		{"CumulativeAdvances", s.CumulativeAdvances, 300},
		{"MonthlyDeductions", s.MonthlyDeductions, 50},
		{"FixedDeductions", s.FixedDeductions, 25},
		{"TotalDeductions", s.TotalDeductions, 75},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if s.EntriesCount != 2 {
		t.Errorf("EntriesCount = %d, want 2", s.EntriesCount)
	}
	if s.ActiveDays != 2 {
		t.Errorf("ActiveDays = %d, want 2", s.ActiveDays)
	}
	if s.Username != "worker1" {
		t.Errorf("Username = %q, want worker1", s.Username)
	}
}

func sameMonthSummary(a, b MonthSummary) bool {
	return a.UserID == b.UserID &&
		a.EntriesCount == b.EntriesCount &&
		a.ActiveDays == b.ActiveDays &&
		almostEqual(a.TotalCash, b.TotalCash) &&
		almostEqual(a.TotalNetwork, b.TotalNetwork) &&
		almostEqual(a.TotalPurchases, b.TotalPurchases) &&
		almostEqual(a.TotalAmount, b.TotalAmount) &&
		almostEqual(a.Remaining, b.Remaining) &&
		almostEqual(a.CumulativeAdvances, b.CumulativeAdvances) &&
		almostEqual(a.MonthlyDeductions, b.MonthlyDeductions) &&
		almostEqual(a.FixedDeductions, b.FixedDeductions) &&
		almostEqual(a.TotalDeductions, b.TotalDeductions)
}

// The month aggregation must not care what order records arrive in.
func TestSummarizeMonthOrderIndependent(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 6}
	var entries []core.DailyEntry
	for day := 1; day <= 20; day++ {
		entries = append(entries, core.DailyEntry{
			UserID: "u1", Date: core.NewDate(2025, 6, day),
			CashAmount: float64(day) * 13.5, NetworkAmount: float64(day) * 7.25, PurchasesAmount: float64(day),
		})
	}
	advance := &core.MonthlyAdvance{UserID: "u1", YearMonth: ym, TotalAdvances: 300}
	deductions := []core.Deduction{
		{UserID: "u1", Date: core.NewDate(2025, 6, 3), Amount: 40, Reason: "damage"},
		{UserID: "u1", Date: core.NewDate(2025, 6, 18), Amount: 12.5, Reason: "shortage"},
	}
	profile := &core.UserProfile{ID: "u1", Username: "worker1", Deductions: 25}

	want := SummarizeMonth("u1", ym, entries, advance, deductions, profile)

	reversed := slices.Clone(entries)
	slices.Reverse(reversed)
	if got := SummarizeMonth("u1", ym, reversed, advance, deductions, profile); !sameMonthSummary(got, want) {
		t.Errorf("reversed order: got %+v, want %+v", got, want)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		shuffled := slices.Clone(entries)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		shuffledDeds := slices.Clone(deductions)
		rng.Shuffle(len(shuffledDeds), func(a, b int) { shuffledDeds[a], shuffledDeds[b] = shuffledDeds[b], shuffledDeds[a] })
		if got := SummarizeMonth("u1", ym, shuffled, advance, shuffledDeds, profile); !sameMonthSummary(got, want) {
			t.Errorf("shuffle %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestSummarizeMonthWorkerView(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 6}
	deductions := []core.Deduction{
		{UserID: "u1", Date: core.NewDate(2025, 6, 10), Amount: 50, Reason: "damage"},
	}

	s := SummarizeMonth("u1", ym, nil, nil, deductions, nil)

	if !almostEqual(s.MonthlyDeductions, 50) {
		t.Errorf("MonthlyDeductions = %v, want 50", s.MonthlyDeductions)
	}
	// Without a profile the fixed and combined figures stay zero.
	if s.FixedDeductions != 0 || s.TotalDeductions != 0 {
		t.Errorf("worker view leaked admin figures: fixed=%v total=%v", s.FixedDeductions, s.TotalDeductions)
	}
	if s.CumulativeAdvances != 0 {
		t.Errorf("CumulativeAdvances = %v, want 0 for absent record", s.CumulativeAdvances)
	}
}

func TestSummarizeMonthAdvanceNeverSummedFromEntries(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 6}
	entries := []core.DailyEntry{
		{UserID: "u1", Date: core.NewDate(2025, 6, 1), CashAmount: 100, AdvanceAmount: 40},
		{UserID: "u1", Date: core.NewDate(2025, 6, 2), CashAmount: 100, AdvanceAmount: 60},
	}

	s := SummarizeMonth("u1", ym, entries, nil, nil, nil)
	if s.CumulativeAdvances != 0 {
		t.Errorf("CumulativeAdvances = %v, want 0: same-day advances must not leak into the cumulative figure", s.CumulativeAdvances)
	}

	s = SummarizeMonth("u1", ym, entries, &core.MonthlyAdvance{UserID: "u1", YearMonth: ym, TotalAdvances: 500}, nil, nil)
	if !almostEqual(s.CumulativeAdvances, 500) {
		t.Errorf("CumulativeAdvances = %v, want 500 from the record alone", s.CumulativeAdvances)
	}
}

func TestSummarizeMonthClampsBadStoredValues(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 6}
	advance := &core.MonthlyAdvance{UserID: "u1", YearMonth: ym, TotalAdvances: -200}
	deductions := []core.Deduction{
		{UserID: "u1", Date: core.NewDate(2025, 6, 1), Amount: math.NaN(), Reason: "corrupt"},
		{UserID: "u1", Date: core.NewDate(2025, 6, 2), Amount: 30, Reason: "valid"},
	}

	s := SummarizeMonth("u1", ym, nil, advance, deductions, nil)
	if s.CumulativeAdvances != 0 {
		t.Errorf("CumulativeAdvances = %v, want 0 for negative stored value", s.CumulativeAdvances)
	}
	if !almostEqual(s.MonthlyDeductions, 30) {
		t.Errorf("MonthlyDeductions = %v, want 30 with NaN clamped", s.MonthlyDeductions)
	}
}

func TestSummarizeFleet(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 6}
	entries := []core.DailyEntry{
		{UserID: "u1", Date: core.NewDate(2025, 6, 1), CashAmount: 100, NetworkAmount: 50, PurchasesAmount: 20},
		{UserID: "u2", Date: core.NewDate(2025, 6, 1), CashAmount: 80},
		{UserID: "u1", Date: core.NewDate(2025, 6, 15), CashAmount: 200},
	}
	advances := []core.MonthlyAdvance{
		{UserID: "u1", YearMonth: ym, TotalAdvances: 300},
	}
	profiles := []core.UserProfile{
		{ID: "u1", Username: "worker1"},
		{ID: "u2", Username: "worker2"},
		{ID: "u3", Username: "worker3"},
	}

	f := SummarizeFleet(ym, entries, advances, nil, profiles)

	if f.DaysInMonth != 30 {
		t.Fatalf("DaysInMonth = %d, want 30", f.DaysInMonth)
	}
	if len(f.Days) != 30 {
		t.Fatalf("len(Days) = %d, want 30", len(f.Days))
	}
	if f.EntriesCount != 3 {
		t.Errorf("EntriesCount = %d, want 3", f.EntriesCount)
	}
	if f.ActiveDays != 2 {
		t.Errorf("ActiveDays = %d, want 2", f.ActiveDays)
	}
	if f.ActiveUsers != 2 {
		t.Errorf("ActiveUsers = %d, want 2: u3 has no entries", f.ActiveUsers)
	}
	if !almostEqual(f.TotalGross, 430) {
		t.Errorf("TotalGross = %v, want 430", f.TotalGross)
	}
	if !almostEqual(f.TotalAdvances, 300) {
		t.Errorf("TotalAdvances = %v, want 300", f.TotalAdvances)
	}
	if !almostEqual(f.AverageDailyAmount, 215) {
		t.Errorf("AverageDailyAmount = %v, want 215", f.AverageDailyAmount)
	}
	if !almostEqual(f.ActivityRatio, 2.0/30.0) {
		t.Errorf("ActivityRatio = %v, want %v", f.ActivityRatio, 2.0/30.0)
	}

	day1 := f.Days[0]
	if day1.DateKey != "2025-06-01" {
		t.Errorf("Days[0].DateKey = %q, want 2025-06-01", day1.DateKey)
	}
	if !almostEqual(day1.TotalAmount, 230) || day1.EntriesCount != 2 {
		t.Errorf("Days[0] = total %v entries %d, want 230 / 2", day1.TotalAmount, day1.EntriesCount)
	}
	// An untouched day stays zero-filled rather than missing.
	day2 := f.Days[1]
	if day2.DateKey != "2025-06-02" || day2.TotalAmount != 0 || day2.EntriesCount != 0 {
		t.Errorf("Days[1] = %+v, want zero-filled 2025-06-02", day2)
	}

	if len(f.Users) != 3 {
		t.Fatalf("len(Users) = %d, want 3", len(f.Users))
	}
}

func TestSummarizeFleetEmptyMonth(t *testing.T) {
	ym := core.YearMonth{Year: 2025, Month: 2}

	f := SummarizeFleet(ym, nil, nil, nil, nil)

	if f.DaysInMonth != 28 {
		t.Errorf("DaysInMonth = %d, want 28", f.DaysInMonth)
	}
	if f.ActiveDays != 0 || f.ActiveUsers != 0 || f.EntriesCount != 0 {
		t.Errorf("empty month reported activity: %+v", f)
	}
	// Guarded divisions: zeros, never NaN.
	if f.AverageDailyAmount != 0 || math.IsNaN(f.AverageDailyAmount) {
		t.Errorf("AverageDailyAmount = %v, want 0", f.AverageDailyAmount)
	}
	if f.ActivityRatio != 0 {
		t.Errorf("ActivityRatio = %v, want 0", f.ActivityRatio)
	}
	if len(f.Days) != 28 {
		t.Errorf("len(Days) = %d, want 28", len(f.Days))
	}
}
