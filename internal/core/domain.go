package core

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	// MaxAttachments limits how many file references a daily entry may carry.
	MaxAttachments = 5

	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 6

	maxNotesLength = 1000
)

// usernameRE accepts 3-30 characters of letters (any script, including
// right-to-left ones), digits or underscore.
var usernameRE = regexp.MustCompile(`^[\p{L}\p{Nd}_]{3,30}$`)

// emailRE is a pragmatic address check, not a full RFC 5322 parser.
var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type (
	// Date is a calendar day keyed as YYYY-MM-DD in the Gregorian calendar.
	// The embedded time is always midnight UTC.
	Date struct {
		time.Time
	}

	// YearMonth keys a calendar month as YYYY-MM.
	YearMonth struct {
		Year  int
		Month int // 1-12
	}

	// Attachment is an opaque reference to an uploaded file. Upload and
	// deletion of the bytes themselves belong to the file-store collaborator.
	Attachment struct {
		Filename     string `json:"filename"`
		OriginalName string `json:"originalName"`
		Path         string `json:"path"`
		MimeType     string `json:"mimetype"`
		Size         int64  `json:"size"`
	}

	// DailyEntry records one worker's figures for one calendar day.
	// At most one entry exists per (user, date).
	//
	// AdvanceAmount is a same-day disbursement. It is independent from the
	// cumulative MonthlyAdvance figure and the two are never summed.
	DailyEntry struct {
		ID              string
		UserID          string
		Date            Date
		CashAmount      float64
		NetworkAmount   float64
		PurchasesAmount float64
		AdvanceAmount   float64
		Notes           string
		Attachments     []Attachment
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// MonthlyAdvance holds the admin-set cumulative advance total for one
	// (user, year-month). Absence means zero.
	MonthlyAdvance struct {
		ID            string
		UserID        string
		YearMonth     YearMonth
		TotalAdvances float64
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Deduction is one append-only penalty/adjustment event. Immutable once
	// created; only a data reset removes it.
	Deduction struct {
		ID        string
		UserID    string
		Date      Date
		Amount    float64
		Reason    string
		CreatedAt time.Time
	}

	// UserProfile is one worker or admin account. Deductions is the fixed
	// standing deduction applied at month granularity, independent from the
	// Deduction ledger.
	UserProfile struct {
		ID           string
		Username     string
		Email        string
		PasswordHash []byte
		IsAdmin      bool
		Deductions   float64
		IsActive     bool
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
)

// NewDate builds a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD key.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return Date{Time: t}, nil
}

// String formats the date as its YYYY-MM-DD key.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// YearMonth returns the month window containing the date.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: int(d.Time.Month())}
}

// ParseYearMonth parses a YYYY-MM key.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return YearMonth{}, &ValidationError{Field: "yearMonth", Message: fmt.Sprintf("invalid month %q, want YYYY-MM", s)}
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

// NewYearMonth validates the numeric window parameters.
func NewYearMonth(year, month int) (YearMonth, error) {
	if year < 1 || year > 9999 {
		return YearMonth{}, &ValidationError{Field: "year", Message: fmt.Sprintf("invalid year %d", year)}
	}
	if month < 1 || month > 12 {
		return YearMonth{}, &ValidationError{Field: "month", Message: fmt.Sprintf("invalid month %d", month)}
	}
	return YearMonth{Year: year, Month: month}, nil
}

// String formats the month as its YYYY-MM key.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Days returns the number of calendar days in the month.
func (ym YearMonth) Days() int {
	return time.Date(ym.Year, time.Month(ym.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateAt returns the given day of the month as a Date.
func (ym YearMonth) DateAt(day int) Date {
	return NewDate(ym.Year, ym.Month, day)
}

// Contains reports whether the date falls inside the month window.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && int(d.Time.Month()) == ym.Month
}

// IsZero reports whether the month window is unset.
func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

// ValidateUsername enforces the 3-30 letters/digits/underscore rule.
func ValidateUsername(username string) error {
	if !usernameRE.MatchString(username) {
		return &ValidationError{Field: "username", Message: "username must be 3-30 letters, digits or underscore"}
	}
	return nil
}

// ValidateEmail enforces a standard address shape.
func ValidateEmail(email string) error {
	if !emailRE.MatchString(email) {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("invalid email address %q", email)}
	}
	return nil
}

// ValidatePassword enforces the minimum length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	return nil
}

// ValidateAmount rejects negative or non-finite monetary values.
func ValidateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Message: "amount must be a finite number"}
	}
	if v < 0 {
		return &ValidationError{Field: field, Message: "amount must not be negative"}
	}
	return nil
}

// Validate checks every field constraint of a daily entry.
func (e DailyEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return &ValidationError{Field: "userId", Message: "user reference is required"}
	}
	if e.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "date is required"}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"cashAmount", e.CashAmount},
		{"networkAmount", e.NetworkAmount},
		{"purchasesAmount", e.PurchasesAmount},
		{"advanceAmount", e.AdvanceAmount},
	} {
		if err := ValidateAmount(f.name, f.value); err != nil {
			return err
		}
	}
	if len(e.Notes) > maxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("notes too long (max %d characters)", maxNotesLength)}
	}
	if len(e.Attachments) > MaxAttachments {
		return &ValidationError{Field: "attachments", Message: fmt.Sprintf("at most %d attachments allowed", MaxAttachments)}
	}
	return nil
}

// Validate checks the append-only deduction constraints: strictly positive
// amount and a non-empty reason.
func (d Deduction) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return &ValidationError{Field: "userId", Message: "user reference is required"}
	}
	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) || d.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "deduction amount must be greater than zero"}
	}
	if strings.TrimSpace(d.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "deduction reason is required"}
	}
	return nil
}

// Validate checks profile identity fields.
func (u UserProfile) Validate() error {
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	return ValidateAmount("deductions", u.Deductions)
}
