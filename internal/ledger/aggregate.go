// Package ledger implements the aggregation engine: the reconciliation
// rules that combine daily entries, cumulative monthly advances, the
// deduction ledger and fixed profile deductions into day, month and
// fleet-wide totals.
//
// All aggregation here is pure and order-independent; fetching the raw
// records and caching the results belongs to Service.
package ledger

import (
	"yawmiya/internal/core"
)

type (
	// DayTotal is the per-entry figure pair. Remaining reflects operational
	// cash-on-hand; deductions and advances never apply at day level.
	DayTotal struct {
		Total     float64 `json:"total"`
		Remaining float64 `json:"remaining"`
	}

	// MonthSummary aggregates one user's month.
	//
	// CumulativeAdvances comes from the MonthlyAdvance record alone; it is
	// never derived from summing DailyEntry.AdvanceAmount. Remaining is
	// cash-on-hand (cash + network - purchases); deductions and advances
	// are reported alongside, never subtracted in.
	MonthSummary struct {
		UserID    string         `json:"userId"`
		Username  string         `json:"username,omitempty"`
		YearMonth core.YearMonth `json:"-"`

		TotalCash      float64 `json:"totalCash"`
		TotalNetwork   float64 `json:"totalNetwork"`
		TotalPurchases float64 `json:"totalPurchases"`
		TotalAmount    float64 `json:"totalAmount"`
		Remaining      float64 `json:"remaining"`

		CumulativeAdvances float64 `json:"totalAdvances"`
		MonthlyDeductions  float64 `json:"monthlyDeductions"`
		// FixedDeductions and TotalDeductions are only populated for
		// admin-facing summaries; worker views carry MonthlyDeductions alone.
		FixedDeductions float64 `json:"fixedDeductions,omitempty"`
		TotalDeductions float64 `json:"totalDeductions,omitempty"`

		EntriesCount int `json:"entriesCount"`
		ActiveDays   int `json:"activeDays"`
	}

	// DaySlice is one calendar date of a fleet summary, aggregated across
	// all users.
	DaySlice struct {
		Date           core.Date `json:"-"`
		DateKey        string    `json:"date"`
		TotalCash      float64   `json:"totalCash"`
		TotalNetwork   float64   `json:"totalNetwork"`
		TotalAmount    float64   `json:"totalAmount"`
		TotalPurchases float64   `json:"totalPurchases"`
		TotalAdvances  float64   `json:"totalAdvances"`
		Remaining      float64   `json:"remaining"`
		EntriesCount   int       `json:"entriesCount"`
	}

	// FleetSummary is the admin view across all users for one month.
	FleetSummary struct {
		YearMonth core.YearMonth `json:"-"`
		MonthKey  string         `json:"yearMonth"`

		Days  []DaySlice     `json:"days"`
		Users []MonthSummary `json:"users"`

		TotalGross     float64 `json:"totalGross"`
		TotalCash      float64 `json:"totalCash"`
		TotalNetwork   float64 `json:"totalNetwork"`
		TotalPurchases float64 `json:"totalPurchases"`
		TotalAdvances  float64 `json:"totalAdvances"`

		EntriesCount       int     `json:"entriesCount"`
		ActiveDays         int     `json:"activeDays"`
		ActiveUsers        int     `json:"activeUsers"`
		DaysInMonth        int     `json:"daysInMonth"`
		AverageDailyAmount float64 `json:"averageDailyAmount"`
		ActivityRatio      float64 `json:"activityRatio"`
	}
)

// clamp floors values read from foreign write paths at zero. Advance and
// deduction figures pass through here; the three entry amounts are already
// rejected as negative at the mutation gateway.
func clamp(v float64) float64 {
	if v < 0 || v != v { // v != v catches NaN
		return 0
	}
	return v
}

// EntryDayTotal computes the day figures for a single entry:
// total = cash + network, remaining = total - purchases.
func EntryDayTotal(e core.DailyEntry) DayTotal {
	total := e.CashAmount + e.NetworkAmount
	return DayTotal{
		Total:     total,
		Remaining: total - e.PurchasesAmount,
	}
}

// SummarizeMonth reconciles one user's month from the raw records.
// Entries and deductions outside the window are ignored, so callers may
// pass unfiltered slices. advance may be nil (absent record means zero).
// profile may be nil for worker-facing views; when present, the fixed and
// combined deduction figures are populated for admin reporting.
func SummarizeMonth(userID string, ym core.YearMonth, entries []core.DailyEntry, advance *core.MonthlyAdvance, deductions []core.Deduction, profile *core.UserProfile) MonthSummary {
	s := MonthSummary{UserID: userID, YearMonth: ym}

	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.UserID != userID || !ym.Contains(e.Date) {
			continue
		}
		s.TotalCash += e.CashAmount
		s.TotalNetwork += e.NetworkAmount
		s.TotalPurchases += e.PurchasesAmount
		s.EntriesCount++
		seen[e.Date.String()] = struct{}{}
	}
	s.TotalAmount = s.TotalCash + s.TotalNetwork
	s.Remaining = s.TotalAmount - s.TotalPurchases
	s.ActiveDays = len(seen)

	if advance != nil && advance.UserID == userID && advance.YearMonth == ym {
		s.CumulativeAdvances = clamp(advance.TotalAdvances)
	}
	for _, d := range deductions {
		if d.UserID != userID || !ym.Contains(d.Date) {
			continue
		}
		s.MonthlyDeductions += clamp(d.Amount)
	}
	if profile != nil {
		s.Username = profile.Username
		s.FixedDeductions = clamp(profile.Deductions)
		s.TotalDeductions = s.FixedDeductions + s.MonthlyDeductions
	}
	return s
}

// SummarizeFleet reconciles the admin month view across all users.
// Missing data degrades to zero-filled figures, never to an error:
// an empty month yields zero totals and a zero average, not NaN.
func SummarizeFleet(ym core.YearMonth, entries []core.DailyEntry, advances []core.MonthlyAdvance, deductions []core.Deduction, profiles []core.UserProfile) FleetSummary {
	f := FleetSummary{
		YearMonth:   ym,
		MonthKey:    ym.String(),
		DaysInMonth: ym.Days(),
	}

	advanceByUser := make(map[string]*core.MonthlyAdvance, len(advances))
	for i := range advances {
		a := &advances[i]
		if a.YearMonth == ym {
			advanceByUser[a.UserID] = a
		}
	}

	// One slice per calendar date, zero-filled for empty days.
	f.Days = make([]DaySlice, f.DaysInMonth)
	for i := range f.Days {
		d := ym.DateAt(i + 1)
		f.Days[i] = DaySlice{Date: d, DateKey: d.String()}
	}

	activeUsers := make(map[string]struct{})
	activeDays := make(map[int]struct{})
	for _, e := range entries {
		if !ym.Contains(e.Date) {
			continue
		}
		day := e.Date.Day() - 1
		slice := &f.Days[day]
		slice.TotalCash += e.CashAmount
		slice.TotalNetwork += e.NetworkAmount
		slice.TotalPurchases += e.PurchasesAmount
		slice.TotalAdvances += clamp(e.AdvanceAmount)
		slice.EntriesCount++

		activeUsers[e.UserID] = struct{}{}
		activeDays[day] = struct{}{}
		f.EntriesCount++
	}
	for i := range f.Days {
		s := &f.Days[i]
		s.TotalAmount = s.TotalCash + s.TotalNetwork
		s.Remaining = s.TotalAmount - s.TotalPurchases
		f.TotalCash += s.TotalCash
		f.TotalNetwork += s.TotalNetwork
		f.TotalPurchases += s.TotalPurchases
	}
	f.TotalGross = f.TotalCash + f.TotalNetwork
	f.ActiveDays = len(activeDays)
	f.ActiveUsers = len(activeUsers)

	// Per-user rollups reuse the month formulas; admins see the combined
	// deduction figures, so the profile is passed through.
	for i := range profiles {
		p := &profiles[i]
		s := SummarizeMonth(p.ID, ym, entries, advanceByUser[p.ID], deductions, p)
		f.TotalAdvances += s.CumulativeAdvances
		f.Users = append(f.Users, s)
	}

	// Guard the divisions: an empty month reports zeros, not NaN/Inf.
	if f.ActiveDays > 0 {
		f.AverageDailyAmount = f.TotalGross / float64(f.ActiveDays)
	}
	if f.DaysInMonth > 0 {
		f.ActivityRatio = float64(f.ActiveDays) / float64(f.DaysInMonth)
	}
	return f
}
