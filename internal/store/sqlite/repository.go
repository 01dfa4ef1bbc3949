// Package sqlite is the durable RecordStore backend. Rows live in four
// tables mirroring the entity kinds; attachments ride along as a JSON
// column on daily_entries. SQLite's single-writer model gives the
// per-record atomicity the store contract asks for, and ResetScope runs
// in one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"yawmiya/internal/core"
	"yawmiya/internal/store"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &core.StoreUnavailableError{Op: "ping", Err: err}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const entryColumns = `id, user_id, entry_date, cash_amount, network_amount,
	purchases_amount, advance_amount, notes, attachments, created_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (core.DailyEntry, error) {
	var (
		e           core.DailyEntry
		date        string
		attachments string
	)
	err := row.Scan(&e.ID, &e.UserID, &date, &e.CashAmount, &e.NetworkAmount,
		&e.PurchasesAmount, &e.AdvanceAmount, &e.Notes, &attachments,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return core.DailyEntry{}, err
	}
	d, perr := core.ParseDate(date)
	if perr != nil {
		return core.DailyEntry{}, fmt.Errorf("corrupt entry date %q: %w", date, perr)
	}
	e.Date = d
	if attachments != "" && attachments != "[]" {
		if err := json.Unmarshal([]byte(attachments), &e.Attachments); err != nil {
			return core.DailyEntry{}, fmt.Errorf("corrupt attachments for entry %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func (r *Repository) ListEntries(ctx context.Context, f store.Filter) ([]core.DailyEntry, error) {
	query := "SELECT " + entryColumns + " FROM daily_entries WHERE 1=1"
	var args []any
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if !f.YearMonth.IsZero() {
		query += " AND entry_date LIKE ?"
		args = append(args, f.YearMonth.String()+"-%")
	}
	query += " ORDER BY entry_date, user_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.DailyEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (r *Repository) GetEntry(ctx context.Context, id string) (core.DailyEntry, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM daily_entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyEntry{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	if err != nil {
		return core.DailyEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (r *Repository) UpsertEntry(ctx context.Context, e core.DailyEntry) (core.DailyEntry, error) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	attachments, err := json.Marshal(e.Attachments)
	if err != nil {
		return core.DailyEntry{}, fmt.Errorf("encode attachments: %w", err)
	}
	if e.Attachments == nil {
		attachments = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO daily_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			entry_date = excluded.entry_date,
			cash_amount = excluded.cash_amount,
			network_amount = excluded.network_amount,
			purchases_amount = excluded.purchases_amount,
			advance_amount = excluded.advance_amount,
			notes = excluded.notes,
			attachments = excluded.attachments,
			updated_at = excluded.updated_at`,
		e.ID, e.UserID, e.Date.String(), e.CashAmount, e.NetworkAmount,
		e.PurchasesAmount, e.AdvanceAmount, e.Notes, string(attachments),
		e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err) {
		return core.DailyEntry{}, &core.ConflictError{
			Resource: "entry",
			Message:  fmt.Sprintf("an entry already exists for %s", e.Date),
		}
	}
	if err != nil {
		return core.DailyEntry{}, fmt.Errorf("upsert entry: %w", err)
	}
	return e, nil
}

func (r *Repository) DeleteEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM daily_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Resource: "entry", ID: id}
	}
	return nil
}

func (r *Repository) GetMonthlyAdvance(ctx context.Context, userID string, ym core.YearMonth) (core.MonthlyAdvance, bool, error) {
	a := core.MonthlyAdvance{UserID: userID, YearMonth: ym}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, total_advances, created_at, updated_at
		FROM monthly_advances WHERE user_id = ? AND year_month = ?`,
		userID, ym.String()).
		Scan(&a.ID, &a.TotalAdvances, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyAdvance{}, false, nil
	}
	if err != nil {
		return core.MonthlyAdvance{}, false, fmt.Errorf("get monthly advance: %w", err)
	}
	return a, true, nil
}

func (r *Repository) SetMonthlyAdvance(ctx context.Context, userID string, ym core.YearMonth, total float64) (core.MonthlyAdvance, error) {
	now := time.Now().UTC()
	a := core.MonthlyAdvance{
		ID:            uuid.NewString(),
		UserID:        userID,
		YearMonth:     ym,
		TotalAdvances: total,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_advances (id, user_id, year_month, total_advances, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, year_month) DO UPDATE SET
			total_advances = excluded.total_advances,
			updated_at = excluded.updated_at`,
		a.ID, userID, ym.String(), total, now, now)
	if err != nil {
		return core.MonthlyAdvance{}, fmt.Errorf("set monthly advance: %w", err)
	}

	// Re-read so the caller sees the surviving row's identity after an
	// upsert hit the existing (user, month) row.
	saved, _, err := r.GetMonthlyAdvance(ctx, userID, ym)
	if err != nil {
		return core.MonthlyAdvance{}, err
	}
	return saved, nil
}

func (r *Repository) ListMonthlyAdvances(ctx context.Context, f store.Filter) ([]core.MonthlyAdvance, error) {
	query := `SELECT id, user_id, year_month, total_advances, created_at, updated_at
		FROM monthly_advances WHERE 1=1`
	var args []any
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if !f.YearMonth.IsZero() {
		query += " AND year_month = ?"
		args = append(args, f.YearMonth.String())
	}
	query += " ORDER BY year_month, user_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list monthly advances: %w", err)
	}
	defer rows.Close()

	var advances []core.MonthlyAdvance
	for rows.Next() {
		var (
			a  core.MonthlyAdvance
			ym string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &ym, &a.TotalAdvances, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan monthly advance: %w", err)
		}
		w, perr := core.ParseYearMonth(ym)
		if perr != nil {
			return nil, fmt.Errorf("corrupt year_month %q: %w", ym, perr)
		}
		a.YearMonth = w
		advances = append(advances, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list monthly advances: %w", err)
	}
	return advances, nil
}

func (r *Repository) ListDeductions(ctx context.Context, f store.Filter) ([]core.Deduction, error) {
	query := `SELECT id, user_id, deduction_date, amount, reason, created_at
		FROM deductions WHERE 1=1`
	var args []any
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if !f.YearMonth.IsZero() {
		query += " AND deduction_date LIKE ?"
		args = append(args, f.YearMonth.String()+"-%")
	}
	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deductions: %w", err)
	}
	defer rows.Close()

	var deductions []core.Deduction
	for rows.Next() {
		var (
			d    core.Deduction
			date string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &date, &d.Amount, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deduction: %w", err)
		}
		day, perr := core.ParseDate(date)
		if perr != nil {
			return nil, fmt.Errorf("corrupt deduction date %q: %w", date, perr)
		}
		d.Date = day
		deductions = append(deductions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deductions: %w", err)
	}
	return deductions, nil
}

func (r *Repository) AddDeduction(ctx context.Context, d core.Deduction) (core.Deduction, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deductions (id, user_id, deduction_date, amount, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Date.String(), d.Amount, d.Reason, d.CreatedAt)
	if err != nil {
		return core.Deduction{}, fmt.Errorf("add deduction: %w", err)
	}
	return d, nil
}

const userColumns = `id, username, email, password_hash, is_admin, deductions,
	is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (core.UserProfile, error) {
	var (
		u    core.UserProfile
		hash string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &hash, &u.IsAdmin,
		&u.Deductions, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return core.UserProfile{}, err
	}
	u.PasswordHash = []byte(hash)
	return u, nil
}

func (r *Repository) getUserWhere(ctx context.Context, where string, nf *core.NotFoundError, arg any) (core.UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, nf
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserProfile(ctx context.Context, id string) (core.UserProfile, error) {
	return r.getUserWhere(ctx, "id = ?", &core.NotFoundError{Resource: "user", ID: id}, id)
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (core.UserProfile, error) {
	return r.getUserWhere(ctx, "email = ? COLLATE NOCASE",
		&core.NotFoundError{Resource: "user", ID: email}, email)
}

func (r *Repository) FindUserByUsername(ctx context.Context, username string) (core.UserProfile, error) {
	return r.getUserWhere(ctx, "username = ?",
		&core.NotFoundError{Resource: "user", ID: username}, username)
}

func (r *Repository) ListUserProfiles(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *Repository) CountUserProfiles(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *Repository) CreateUserProfile(ctx context.Context, u core.UserProfile) (core.UserProfile, error) {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, string(u.PasswordHash), u.IsAdmin,
		u.Deductions, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return core.UserProfile{}, &core.ConflictError{
			Resource: "user",
			Message:  "username or email already taken",
		}
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Repository) UpdateUserProfile(ctx context.Context, u core.UserProfile) (core.UserProfile, error) {
	u.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?,
			is_admin = ?, deductions = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.Email, string(u.PasswordHash), u.IsAdmin,
		u.Deductions, u.IsActive, u.UpdatedAt, u.ID)
	if isUniqueViolation(err) {
		return core.UserProfile{}, &core.ConflictError{
			Resource: "user",
			Message:  "username or email already taken",
		}
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.UserProfile{}, &core.NotFoundError{Resource: "user", ID: u.ID}
	}
	return u, nil
}

func (r *Repository) DeleteUserProfile(ctx context.Context, id string) error {
	// ON DELETE CASCADE on the child tables removes the user's entries,
	// advances and deductions with the profile row.
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Resource: "user", ID: id}
	}
	return nil
}

func (r *Repository) ResetScope(ctx context.Context, scope store.Scope) error {
	if !scope.IsValid() {
		return &core.ValidationError{Field: "scope", Message: fmt.Sprintf("unknown reset scope %q", scope)}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StoreUnavailableError{Op: "reset", Err: err}
	}
	defer tx.Rollback()

	for _, table := range []string{"deductions", "monthly_advances", "daily_entries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	if scope == store.ScopeComplete {
		if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
			return fmt.Errorf("reset users: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
