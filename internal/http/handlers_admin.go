package http

import (
	"net/http"
	"time"

	"yawmiya/internal/core"
	"yawmiya/internal/store"
)

type advanceResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	YearMonth     string    `json:"yearMonth"`
	TotalAdvances float64   `json:"totalAdvances"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toAdvanceResponses(advances []core.MonthlyAdvance) []advanceResponse {
	out := make([]advanceResponse, 0, len(advances))
	for _, a := range advances {
		out = append(out, advanceResponse{
			ID:            a.ID,
			UserID:        a.UserID,
			YearMonth:     a.YearMonth.String(),
			TotalAdvances: a.TotalAdvances,
			UpdatedAt:     a.UpdatedAt,
		})
	}
	return out
}

type deductionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	Amount    float64   `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

func toDeductionResponses(deductions []core.Deduction) []deductionResponse {
	out := make([]deductionResponse, 0, len(deductions))
	for _, d := range deductions {
		out = append(out, deductionResponse{
			ID:        d.ID,
			UserID:    d.UserID,
			Date:      d.Date.String(),
			Amount:    d.Amount,
			Reason:    d.Reason,
			CreatedAt: d.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.records.ListUserProfiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.DeleteUser(r.Context(), callerFrom(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeleteUserEntries(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.gateway.DeleteAllEntries(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": deleted})
}

func (s *Server) handleAddDeduction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	d, err := s.gateway.AddDeduction(r.Context(), callerFrom(r), r.PathValue("id"), req.Amount, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeductionResponses([]core.Deduction{d})[0])
}

func (s *Server) handleUserDeductions(w http.ResponseWriter, r *http.Request) {
	deductions, err := s.records.ListDeductions(r.Context(), store.Filter{UserID: r.PathValue("id")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeductionResponses(deductions))
}

func (s *Server) handleSetAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year          int     `json:"year"`
		Month         int     `json:"month"`
		TotalAdvances float64 `json:"totalAdvances"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ym, err := core.NewYearMonth(req.Year, req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.gateway.SetMonthlyAdvance(r.Context(), callerFrom(r), r.PathValue("id"), ym, req.TotalAdvances)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceResponses([]core.MonthlyAdvance{a})[0])
}

func (s *Server) handleAdminUsername(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.gateway.UpdateUsername(r.Context(), callerFrom(r), r.PathValue("id"), req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.gateway.UpdateEmail(r.Context(), callerFrom(r), r.PathValue("id"), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleAdminPassword resets a user's password without the current-password
// check; the admin capability stands in for it.
func (s *Server) handleAdminPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword string `json:"newPassword"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := core.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := s.auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.gateway.SetPasswordHash(r.Context(), callerFrom(r), r.PathValue("id"), hash); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func (s *Server) handleFixedDeductions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deductions float64 `json:"deductions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.gateway.SetFixedDeductions(r.Context(), callerFrom(r), r.PathValue("id"), req.Deductions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleToggleAdmin(w http.ResponseWriter, r *http.Request) {
	user, err := s.gateway.ToggleAdmin(r.Context(), callerFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleFleetSummary(w http.ResponseWriter, r *http.Request) {
	ym, err := parseWindow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.ledger.FleetSummary(r.Context(), ym)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.SystemStats(r.Context(), time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	recent := make([]entryResponse, 0, len(stats.RecentEntries))
	for _, e := range stats.RecentEntries {
		recent = append(recent, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalUsers":    stats.TotalUsers,
		"totalEntries":  stats.TotalEntries,
		"totalAdvances": stats.TotalAdvances,
		"monthlyStats":  stats.MonthlyStats,
		"recentEntries": recent,
	})
}

func (s *Server) handleResetData(w http.ResponseWriter, r *http.Request) {
	s.handleReset(w, r, store.ScopeData)
}

func (s *Server) handleSystemReset(w http.ResponseWriter, r *http.Request) {
	s.handleReset(w, r, store.ScopeComplete)
}

// handleReset requires the scope's exact confirmation phrase; a mismatch
// mutates nothing.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, scope store.Scope) {
	var req struct {
		ConfirmationText string `json:"confirmationText"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.gateway.Reset(r.Context(), callerFrom(r), scope, req.ConfirmationText); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset complete", "scope": string(scope)})
}
