package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"yawmiya/internal/cache"
	"yawmiya/internal/core"
	"yawmiya/internal/store"
)

const (
	cacheSize = 256
	cacheTTL  = 5 * time.Minute
)

// Service computes summaries on request from record-store snapshots and
// memoizes them. It holds no state of its own beyond the caches; the
// mutation gateway calls InvalidateWindow after every write.
type Service struct {
	records store.RecordStore

	monthCache *cache.LRU[MonthSummary]
	fleetCache *cache.LRU[FleetSummary]
}

// NewService creates the aggregation service over the given store.
func NewService(records store.RecordStore) *Service {
	return &Service{
		records:    records,
		monthCache: cache.NewLRU[MonthSummary](cacheSize, cacheTTL),
		fleetCache: cache.NewLRU[FleetSummary](cacheSize, cacheTTL),
	}
}

// RegisterCaches adds the service caches to a cleanup manager.
func (s *Service) RegisterCaches(m *cache.Manager) {
	m.Register(s.monthCache)
	m.Register(s.fleetCache)
}

func monthKey(userID string, ym core.YearMonth, admin bool) string {
	return fmt.Sprintf("month|%s|%s|admin=%t", userID, ym, admin)
}

// MonthSummary aggregates one user's month. When forAdmin is set the
// user's profile is mandatory (it resolves the fixed deduction figure) and
// a missing profile surfaces as NotFoundError; worker-facing summaries
// omit the fixed and combined deduction fields entirely.
func (s *Service) MonthSummary(ctx context.Context, userID string, ym core.YearMonth, forAdmin bool) (MonthSummary, error) {
	key := monthKey(userID, ym, forAdmin)
	if cached, ok := s.monthCache.Get(key); ok {
		return cached, nil
	}

	filter := store.Filter{UserID: userID, YearMonth: ym}
	entries, err := s.records.ListEntries(ctx, filter)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("list entries: %w", err)
	}
	deductions, err := s.records.ListDeductions(ctx, filter)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("list deductions: %w", err)
	}
	var advance *core.MonthlyAdvance
	if a, ok, err := s.records.GetMonthlyAdvance(ctx, userID, ym); err != nil {
		return MonthSummary{}, fmt.Errorf("get monthly advance: %w", err)
	} else if ok {
		advance = &a
	}

	var profile *core.UserProfile
	if forAdmin {
		p, err := s.records.GetUserProfile(ctx, userID)
		if err != nil {
			return MonthSummary{}, err
		}
		profile = &p
	}

	summary := SummarizeMonth(userID, ym, entries, advance, deductions, profile)
	s.monthCache.Set(key, summary)
	return summary, nil
}

// FleetSummary aggregates the admin month view across all users.
func (s *Service) FleetSummary(ctx context.Context, ym core.YearMonth) (FleetSummary, error) {
	key := "fleet|" + ym.String()
	if cached, ok := s.fleetCache.Get(key); ok {
		return cached, nil
	}

	filter := store.Filter{YearMonth: ym}
	entries, err := s.records.ListEntries(ctx, filter)
	if err != nil {
		return FleetSummary{}, fmt.Errorf("list entries: %w", err)
	}
	advances, err := s.records.ListMonthlyAdvances(ctx, filter)
	if err != nil {
		return FleetSummary{}, fmt.Errorf("list advances: %w", err)
	}
	deductions, err := s.records.ListDeductions(ctx, filter)
	if err != nil {
		return FleetSummary{}, fmt.Errorf("list deductions: %w", err)
	}
	profiles, err := s.records.ListUserProfiles(ctx)
	if err != nil {
		return FleetSummary{}, fmt.Errorf("list profiles: %w", err)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Username < profiles[j].Username })

	summary := SummarizeFleet(ym, entries, advances, deductions, profiles)
	s.fleetCache.Set(key, summary)
	return summary, nil
}

// EntryStats holds window totals for the stats endpoint. SameDayAdvances
// sums DailyEntry.AdvanceAmount only; cumulative monthly advances never
// mix into it.
type EntryStats struct {
	TotalEntries    int     `json:"totalEntries"`
	TotalCash       float64 `json:"totalCash"`
	TotalNetwork    float64 `json:"totalNetwork"`
	TotalPurchases  float64 `json:"totalPurchases"`
	SameDayAdvances float64 `json:"totalAdvances"`
	TotalIncome     float64 `json:"totalIncome"`
	TotalRemaining  float64 `json:"totalRemaining"`
}

// Stats sums raw entry fields over the filter window.
func (s *Service) Stats(ctx context.Context, f store.Filter) (EntryStats, error) {
	entries, err := s.records.ListEntries(ctx, f)
	if err != nil {
		return EntryStats{}, fmt.Errorf("list entries: %w", err)
	}
	var st EntryStats
	for _, e := range entries {
		st.TotalEntries++
		st.TotalCash += e.CashAmount
		st.TotalNetwork += e.NetworkAmount
		st.TotalPurchases += e.PurchasesAmount
		st.SameDayAdvances += clamp(e.AdvanceAmount)
	}
	st.TotalIncome = st.TotalCash + st.TotalNetwork
	st.TotalRemaining = st.TotalIncome - st.TotalPurchases
	return st, nil
}

// SystemStats is the admin dashboard overview.
type SystemStats struct {
	TotalUsers    int               `json:"totalUsers"`
	TotalEntries  int               `json:"totalEntries"`
	TotalAdvances int               `json:"totalAdvances"`
	RecentEntries []core.DailyEntry `json:"-"`
	MonthlyStats  EntryStats        `json:"monthlyStats"`
}

// SystemStats counts stored records and summarizes the current month.
func (s *Service) SystemStats(ctx context.Context, now time.Time) (SystemStats, error) {
	var st SystemStats

	users, err := s.records.CountUserProfiles(ctx)
	if err != nil {
		return st, fmt.Errorf("count users: %w", err)
	}
	st.TotalUsers = users

	entries, err := s.records.ListEntries(ctx, store.Filter{})
	if err != nil {
		return st, fmt.Errorf("list entries: %w", err)
	}
	st.TotalEntries = len(entries)

	advances, err := s.records.ListMonthlyAdvances(ctx, store.Filter{})
	if err != nil {
		return st, fmt.Errorf("list advances: %w", err)
	}
	st.TotalAdvances = len(advances)

	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if len(entries) > 10 {
		entries = entries[:10]
	}
	st.RecentEntries = entries

	ym := core.YearMonth{Year: now.UTC().Year(), Month: int(now.UTC().Month())}
	st.MonthlyStats, err = s.Stats(ctx, store.Filter{YearMonth: ym})
	if err != nil {
		return st, err
	}
	return st, nil
}

// InvalidateWindow drops every cached view touching the (user, month) key.
// An empty userID clears the month across all users.
func (s *Service) InvalidateWindow(userID string, ym core.YearMonth) {
	if userID == "" {
		s.monthCache.DeletePrefix("month|")
	} else {
		s.monthCache.DeletePrefix("month|" + userID + "|" + ym.String())
	}
	s.fleetCache.Delete("fleet|" + ym.String())
}

// InvalidateAll drops everything; resets and user deletion use it.
func (s *Service) InvalidateAll() {
	s.monthCache.Purge()
	s.fleetCache.Purge()
}
