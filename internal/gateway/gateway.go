// Package gateway is the single write path into the record store. Every
// operation validates exhaustively before touching the store, performs no
// partial writes, and authorizes through a per-call capability rather than
// any stored lock state.
package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"yawmiya/internal/amqp"
	"yawmiya/internal/core"
	"yawmiya/internal/ledger"
	"yawmiya/internal/store"
)

// Reset confirmation phrases, exact and case-sensitive, one per scope.
const (
	ConfirmResetData     = "تصفير البيانات"
	ConfirmResetComplete = "تصفير كامل"
)

// Capability identifies the caller of a mutating operation. Admin is a
// role check evaluated at every call; it is never persisted on an entry.
type Capability struct {
	UserID string
	Admin  bool
}

// EventPublisher announces committed mutations to subscribers. A nil
// publisher disables announcements without disabling writes.
type EventPublisher interface {
	PublishMutation(ctx context.Context, event amqp.MutationEvent) error
}

// Gateway validates and writes mutations, then invalidates the affected
// summary windows and announces the change.
type Gateway struct {
	records store.RecordStore
	ledger  *ledger.Service
	events  EventPublisher
}

// New creates a gateway. ledger may not be nil; events may be.
func New(records store.RecordStore, ledger *ledger.Service, events EventPublisher) *Gateway {
	return &Gateway{records: records, ledger: ledger, events: events}
}

// EntryInput carries the mutable fields of a daily entry.
type EntryInput struct {
	Date            string
	CashAmount      float64
	NetworkAmount   float64
	PurchasesAmount float64
	AdvanceAmount   float64
	Notes           string
	Attachments     []core.Attachment
}

// CreateEntry creates the single entry for (user, date). Non-admins may
// only create their own; an occupied slot is a conflict and the original
// entry stays untouched.
func (g *Gateway) CreateEntry(ctx context.Context, caller Capability, userID string, in EntryInput) (core.DailyEntry, error) {
	if !caller.Admin && caller.UserID != userID {
		return core.DailyEntry{}, &core.PermissionError{Op: "create entry for another user"}
	}

	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.DailyEntry{}, err
	}
	if _, err := g.records.GetUserProfile(ctx, userID); err != nil {
		return core.DailyEntry{}, err
	}

	entry := core.DailyEntry{
		UserID:          userID,
		Date:            date,
		CashAmount:      in.CashAmount,
		NetworkAmount:   in.NetworkAmount,
		PurchasesAmount: in.PurchasesAmount,
		AdvanceAmount:   in.AdvanceAmount,
		Notes:           in.Notes,
		Attachments:     in.Attachments,
	}
	if err := entry.Validate(); err != nil {
		return core.DailyEntry{}, err
	}

	if err := g.checkSlotFree(ctx, userID, date, ""); err != nil {
		return core.DailyEntry{}, err
	}

	saved, err := g.records.UpsertEntry(ctx, entry)
	if err != nil {
		return core.DailyEntry{}, err
	}

	g.afterMutation(ctx, amqp.KindEntryUpserted, userID, date.YearMonth())
	return saved, nil
}

// UpdateEntry edits an existing entry. Only an admin identity may edit
// after creation; the original creator loses edit rights the moment the
// entry exists. That is a role check per call, not entry state.
func (g *Gateway) UpdateEntry(ctx context.Context, caller Capability, entryID string, in EntryInput) (core.DailyEntry, error) {
	if !caller.Admin {
		return core.DailyEntry{}, &core.PermissionError{Op: "update entry"}
	}

	entry, err := g.records.GetEntry(ctx, entryID)
	if err != nil {
		return core.DailyEntry{}, err
	}
	oldMonth := entry.Date.YearMonth()

	if strings.TrimSpace(in.Date) != "" {
		date, err := core.ParseDate(in.Date)
		if err != nil {
			return core.DailyEntry{}, err
		}
		if date != entry.Date {
			if err := g.checkSlotFree(ctx, entry.UserID, date, entry.ID); err != nil {
				return core.DailyEntry{}, err
			}
			entry.Date = date
		}
	}
	entry.CashAmount = in.CashAmount
	entry.NetworkAmount = in.NetworkAmount
	entry.PurchasesAmount = in.PurchasesAmount
	entry.AdvanceAmount = in.AdvanceAmount
	entry.Notes = in.Notes
	if in.Attachments != nil {
		entry.Attachments = in.Attachments
	}
	if err := entry.Validate(); err != nil {
		return core.DailyEntry{}, err
	}

	saved, err := g.records.UpsertEntry(ctx, entry)
	if err != nil {
		return core.DailyEntry{}, err
	}

	g.afterMutation(ctx, amqp.KindEntryUpserted, entry.UserID, entry.Date.YearMonth())
	if oldMonth != entry.Date.YearMonth() {
		g.afterMutation(ctx, amqp.KindEntryUpserted, entry.UserID, oldMonth)
	}
	return saved, nil
}

// DeleteEntry removes an entry. Admin-only; attachment cleanup cascades
// through the external file store.
func (g *Gateway) DeleteEntry(ctx context.Context, caller Capability, entryID string) error {
	if !caller.Admin {
		return &core.PermissionError{Op: "delete entry"}
	}
	entry, err := g.records.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if err := g.records.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	g.afterMutation(ctx, amqp.KindEntryDeleted, entry.UserID, entry.Date.YearMonth())
	return nil
}

// DeleteAllEntries removes every daily entry one user has. Admin-only;
// the profile, advances and deductions stay.
func (g *Gateway) DeleteAllEntries(ctx context.Context, caller Capability, userID string) (int, error) {
	if !caller.Admin {
		return 0, &core.PermissionError{Op: "delete all entries"}
	}
	if _, err := g.records.GetUserProfile(ctx, userID); err != nil {
		return 0, err
	}

	entries, err := g.records.ListEntries(ctx, store.Filter{UserID: userID})
	if err != nil {
		return 0, err
	}

	months := make(map[core.YearMonth]struct{})
	deleted := 0
	for _, e := range entries {
		if err := g.records.DeleteEntry(ctx, e.ID); err != nil {
			return deleted, err
		}
		deleted++
		months[e.Date.YearMonth()] = struct{}{}
	}
	for ym := range months {
		g.afterMutation(ctx, amqp.KindEntryDeleted, userID, ym)
	}
	return deleted, nil
}

// AddDeduction appends one immutable deduction event dated today.
func (g *Gateway) AddDeduction(ctx context.Context, caller Capability, userID string, amount float64, reason string) (core.Deduction, error) {
	if !caller.Admin {
		return core.Deduction{}, &core.PermissionError{Op: "add deduction"}
	}
	if _, err := g.records.GetUserProfile(ctx, userID); err != nil {
		return core.Deduction{}, err
	}

	now := time.Now().UTC()
	d := core.Deduction{
		UserID: userID,
		Date:   core.NewDate(now.Year(), int(now.Month()), now.Day()),
		Amount: amount,
		Reason: strings.TrimSpace(reason),
	}
	if err := d.Validate(); err != nil {
		return core.Deduction{}, err
	}

	saved, err := g.records.AddDeduction(ctx, d)
	if err != nil {
		return core.Deduction{}, err
	}
	g.afterMutation(ctx, amqp.KindDeductionAdded, userID, d.Date.YearMonth())
	return saved, nil
}

// SetMonthlyAdvance replaces the cumulative advance figure for the month.
// Replace, never add: setting the same value twice is idempotent.
func (g *Gateway) SetMonthlyAdvance(ctx context.Context, caller Capability, userID string, ym core.YearMonth, total float64) (core.MonthlyAdvance, error) {
	if !caller.Admin {
		return core.MonthlyAdvance{}, &core.PermissionError{Op: "set monthly advance"}
	}
	if err := core.ValidateAmount("totalAdvances", total); err != nil {
		return core.MonthlyAdvance{}, err
	}
	if _, err := g.records.GetUserProfile(ctx, userID); err != nil {
		return core.MonthlyAdvance{}, err
	}

	saved, err := g.records.SetMonthlyAdvance(ctx, userID, ym, total)
	if err != nil {
		return core.MonthlyAdvance{}, err
	}
	g.afterMutation(ctx, amqp.KindAdvanceSet, userID, ym)
	return saved, nil
}

// UpdateUsername renames a user. Self-service or admin.
func (g *Gateway) UpdateUsername(ctx context.Context, caller Capability, userID, username string) (core.UserProfile, error) {
	if !caller.Admin && caller.UserID != userID {
		return core.UserProfile{}, &core.PermissionError{Op: "update another user's username"}
	}
	if err := core.ValidateUsername(username); err != nil {
		return core.UserProfile{}, err
	}
	return g.updateProfile(ctx, userID, func(u *core.UserProfile) { u.Username = username })
}

// UpdateEmail changes a user's email. Self-service or admin.
func (g *Gateway) UpdateEmail(ctx context.Context, caller Capability, userID, email string) (core.UserProfile, error) {
	if !caller.Admin && caller.UserID != userID {
		return core.UserProfile{}, &core.PermissionError{Op: "update another user's email"}
	}
	if err := core.ValidateEmail(email); err != nil {
		return core.UserProfile{}, err
	}
	return g.updateProfile(ctx, userID, func(u *core.UserProfile) { u.Email = email })
}

// SetPasswordHash stores an already-hashed password. Hashing and the
// current-password check for self-service changes live in the auth layer.
func (g *Gateway) SetPasswordHash(ctx context.Context, caller Capability, userID string, hash []byte) (core.UserProfile, error) {
	if !caller.Admin && caller.UserID != userID {
		return core.UserProfile{}, &core.PermissionError{Op: "change another user's password"}
	}
	if len(hash) == 0 {
		return core.UserProfile{}, &core.ValidationError{Field: "password", Message: "password hash is required"}
	}
	return g.updateProfile(ctx, userID, func(u *core.UserProfile) { u.PasswordHash = hash })
}

// SetFixedDeductions sets the standing per-month deduction. Admin-only.
func (g *Gateway) SetFixedDeductions(ctx context.Context, caller Capability, userID string, amount float64) (core.UserProfile, error) {
	if !caller.Admin {
		return core.UserProfile{}, &core.PermissionError{Op: "set fixed deductions"}
	}
	if err := core.ValidateAmount("deductions", amount); err != nil {
		return core.UserProfile{}, err
	}
	return g.updateProfile(ctx, userID, func(u *core.UserProfile) { u.Deductions = amount })
}

// ToggleAdmin flips a user's admin flag. Admin-only; an admin may not
// demote themselves, which keeps the system from losing its last admin.
func (g *Gateway) ToggleAdmin(ctx context.Context, caller Capability, userID string) (core.UserProfile, error) {
	if !caller.Admin {
		return core.UserProfile{}, &core.PermissionError{Op: "toggle admin status"}
	}
	if caller.UserID == userID {
		return core.UserProfile{}, &core.ValidationError{Field: "userId", Message: "cannot change your own admin status"}
	}
	return g.updateProfile(ctx, userID, func(u *core.UserProfile) { u.IsAdmin = !u.IsAdmin })
}

// DeleteUser removes a profile and cascades all of its records.
func (g *Gateway) DeleteUser(ctx context.Context, caller Capability, userID string) error {
	if !caller.Admin {
		return &core.PermissionError{Op: "delete user"}
	}
	if caller.UserID == userID {
		return &core.ValidationError{Field: "userId", Message: "cannot delete your own account"}
	}
	if err := g.records.DeleteUserProfile(ctx, userID); err != nil {
		return err
	}
	g.ledger.InvalidateAll()
	g.publish(ctx, amqp.MutationEvent{Kind: amqp.KindUserDeleted, UserID: userID, Timestamp: time.Now().UTC()})
	return nil
}

// Reset bulk-clears a scope. The variant-specific confirmation phrase must
// match exactly or nothing happens; the store executes the clear
// atomically under exclusive access.
func (g *Gateway) Reset(ctx context.Context, caller Capability, scope store.Scope, confirmation string) error {
	if !caller.Admin {
		return &core.PermissionError{Op: "reset"}
	}
	var expected string
	switch scope {
	case store.ScopeData:
		expected = ConfirmResetData
	case store.ScopeComplete:
		expected = ConfirmResetComplete
	default:
		return &core.ValidationError{Field: "scope", Message: "unknown reset scope"}
	}
	if confirmation != expected {
		return &core.ValidationError{Field: "confirmationText", Message: "confirmation phrase does not match"}
	}

	if err := g.records.ResetScope(ctx, scope); err != nil {
		return err
	}
	g.ledger.InvalidateAll()
	g.publish(ctx, amqp.MutationEvent{Kind: amqp.KindScopeReset, YearMonth: "", Timestamp: time.Now().UTC()})
	return nil
}

// checkSlotFree enforces at most one entry per (user, date), ignoring the
// entry being edited.
func (g *Gateway) checkSlotFree(ctx context.Context, userID string, date core.Date, selfID string) error {
	entries, err := g.records.ListEntries(ctx, store.Filter{UserID: userID, YearMonth: date.YearMonth()})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Date == date && e.ID != selfID {
			return &core.ConflictError{Resource: "entry", Message: "an entry already exists for this date"}
		}
	}
	return nil
}

func (g *Gateway) updateProfile(ctx context.Context, userID string, apply func(*core.UserProfile)) (core.UserProfile, error) {
	u, err := g.records.GetUserProfile(ctx, userID)
	if err != nil {
		return core.UserProfile{}, err
	}
	apply(&u)
	saved, err := g.records.UpdateUserProfile(ctx, u)
	if err != nil {
		return core.UserProfile{}, err
	}
	g.publish(ctx, amqp.NewMutationEvent(amqp.KindProfileUpdated, userID, ""))
	return saved, nil
}

// afterMutation invalidates the affected window and announces the change.
func (g *Gateway) afterMutation(ctx context.Context, kind, userID string, ym core.YearMonth) {
	g.ledger.InvalidateWindow(userID, ym)
	g.publish(ctx, amqp.NewMutationEvent(kind, userID, ym.String()))
}

// publish is nil-safe and never fails the mutation: the write already
// committed, so a broken bus only costs freshness downstream.
func (g *Gateway) publish(ctx context.Context, event amqp.MutationEvent) {
	if g.events == nil {
		return
	}
	if err := g.events.PublishMutation(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mutation event",
			"kind", event.Kind,
			"user_id", event.UserID,
			"error", err)
	}
}
