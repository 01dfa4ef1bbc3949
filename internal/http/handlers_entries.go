package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"yawmiya/internal/core"
	"yawmiya/internal/gateway"
	"yawmiya/internal/ledger"
	"yawmiya/internal/store"
)

// parseWindow reads year/month query parameters, defaulting to the current
// month UTC. Bad values are a validation error, not a silent fallback.
func parseWindow(r *http.Request) (core.YearMonth, error) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, &core.ValidationError{Field: "year", Message: "year must be a number"}
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, &core.ValidationError{Field: "month", Message: "month must be a number"}
		}
		month = m
	}
	return core.NewYearMonth(year, month)
}

// scopedUserID resolves the target user of a read: admins may pass
// ?userId= to inspect anyone, everyone else is pinned to themselves.
func scopedUserID(r *http.Request, caller gateway.Capability) (string, error) {
	requested := strings.TrimSpace(r.URL.Query().Get("userId"))
	if requested == "" || requested == caller.UserID {
		return caller.UserID, nil
	}
	if !caller.Admin {
		return "", &core.PermissionError{Op: "read another user's records"}
	}
	return requested, nil
}

type entryResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	Date            string            `json:"date"`
	CashAmount      float64           `json:"cashAmount"`
	NetworkAmount   float64           `json:"networkAmount"`
	PurchasesAmount float64           `json:"purchasesAmount"`
	AdvanceAmount   float64           `json:"advanceAmount"`
	Notes           string            `json:"notes,omitempty"`
	Attachments     []core.Attachment `json:"attachments,omitempty"`
	Total           float64           `json:"total"`
	Remaining       float64           `json:"remaining"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func toEntryResponse(e core.DailyEntry) entryResponse {
	day := ledger.EntryDayTotal(e)
	return entryResponse{
		ID:              e.ID,
		UserID:          e.UserID,
		Date:            e.Date.String(),
		CashAmount:      e.CashAmount,
		NetworkAmount:   e.NetworkAmount,
		PurchasesAmount: e.PurchasesAmount,
		AdvanceAmount:   e.AdvanceAmount,
		Notes:           e.Notes,
		Attachments:     e.Attachments,
		Total:           day.Total,
		Remaining:       day.Remaining,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ym, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := scopedUserID(r, callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.records.ListEntries(r.Context(), store.Filter{UserID: userID, YearMonth: ym})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type entryRequest struct {
	UserID          string            `json:"userId"`
	Date            string            `json:"date"`
	CashAmount      float64           `json:"cashAmount"`
	NetworkAmount   float64           `json:"networkAmount"`
	PurchasesAmount float64           `json:"purchasesAmount"`
	AdvanceAmount   float64           `json:"advanceAmount"`
	Notes           string            `json:"notes"`
	Attachments     []core.Attachment `json:"attachments"`
}

func (req entryRequest) input() gateway.EntryInput {
	return gateway.EntryInput{
		Date:            req.Date,
		CashAmount:      req.CashAmount,
		NetworkAmount:   req.NetworkAmount,
		PurchasesAmount: req.PurchasesAmount,
		AdvanceAmount:   req.AdvanceAmount,
		Notes:           req.Notes,
		Attachments:     req.Attachments,
	}
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller := callerFrom(r)
	userID := req.UserID
	if userID == "" {
		userID = caller.UserID
	}

	entry, err := s.gateway.CreateEntry(r.Context(), caller, userID, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := s.gateway.UpdateEntry(r.Context(), callerFrom(r), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.DeleteEntry(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleEntryStats(w http.ResponseWriter, r *http.Request) {
	ym, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := scopedUserID(r, callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.ledger.Stats(r.Context(), store.Filter{UserID: userID, YearMonth: ym})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	ym, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	caller := callerFrom(r)
	userID, err := scopedUserID(r, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Admins see the combined deduction figures; workers get the month
	// deduction total alone.
	summary, err := s.ledger.MonthSummary(r.Context(), userID, ym, caller.Admin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleOwnAdvances(w http.ResponseWriter, r *http.Request) {
	ym, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := scopedUserID(r, callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	advances, err := s.records.ListMonthlyAdvances(r.Context(), store.Filter{UserID: userID, YearMonth: ym})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceResponses(advances))
}

func (s *Server) handleOwnDeductions(w http.ResponseWriter, r *http.Request) {
	userID, err := scopedUserID(r, callerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	deductions, err := s.records.ListDeductions(r.Context(), store.Filter{UserID: userID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeductionResponses(deductions))
}
