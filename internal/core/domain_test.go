package core

import (
	"math"
	"testing"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-06-01" {
		t.Fatalf("round trip mismatch: %s", d.String())
	}
	if got := d.YearMonth(); got != (YearMonth{Year: 2025, Month: 6}) {
		t.Fatalf("unexpected year-month %v", got)
	}

	bads := []string{"", "2025-13-01", "01/06/2025", "2025-06-32", "2025-06"}
	for i, s := range bads {
		if _, err := ParseDate(s); err == nil {
			t.Fatalf("case %d expected error for %q", i, s)
		} else if !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("2025-06")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if ym.String() != "2025-06" {
		t.Fatalf("round trip mismatch: %s", ym.String())
	}
	for i, s := range []string{"", "2025", "2025-00", "2025-13", "june 2025"} {
		if _, err := ParseYearMonth(s); err == nil {
			t.Fatalf("case %d expected error for %q", i, s)
		}
	}
}

func TestYearMonthDays(t *testing.T) {
	cases := []struct {
		ym   YearMonth
		days int
	}{
		{YearMonth{2025, 6}, 30},
		{YearMonth{2025, 7}, 31},
		{YearMonth{2025, 2}, 28},
		{YearMonth{2024, 2}, 29}, // leap year
	}
	for i, tc := range cases {
		if got := tc.ym.Days(); got != tc.days {
			t.Fatalf("case %d: got %d days, want %d", i, got, tc.days)
		}
	}
}

func TestYearMonthContains(t *testing.T) {
	ym := YearMonth{Year: 2025, Month: 6}
	if !ym.Contains(NewDate(2025, 6, 1)) || !ym.Contains(NewDate(2025, 6, 30)) {
		t.Fatal("expected in-month dates to be contained")
	}
	if ym.Contains(NewDate(2025, 5, 31)) || ym.Contains(NewDate(2024, 6, 15)) {
		t.Fatal("expected out-of-month dates to be excluded")
	}
}

func TestValidateUsername(t *testing.T) {
	goods := []string{"ahmed", "user_01", "محمد_123", "abc"}
	for i, u := range goods {
		if err := ValidateUsername(u); err != nil {
			t.Fatalf("case %d expected ok for %q, got %v", i, u, err)
		}
	}
	bads := []string{"", "ab", "has space", "dash-ed", "way_too_long_username_over_thirty_chars"}
	for i, u := range bads {
		if err := ValidateUsername(u); err == nil {
			t.Fatalf("case %d expected error for %q", i, u)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail("worker@example.com"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for i, e := range []string{"", "no-at", "a@b", "two@@example.com", "a b@example.com"} {
		if err := ValidateEmail(e); err == nil {
			t.Fatalf("case %d expected error for %q", i, e)
		}
	}
}

func TestValidateAmount(t *testing.T) {
	if err := ValidateAmount("cashAmount", 0); err != nil {
		t.Fatalf("zero must be valid, got %v", err)
	}
	if err := ValidateAmount("cashAmount", 199.5); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for i, v := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := ValidateAmount("cashAmount", v); err == nil {
			t.Fatalf("case %d expected error for %v", i, v)
		}
	}
}

func TestDailyEntryValidate(t *testing.T) {
	good := DailyEntry{
		UserID:        "u1",
		Date:          NewDate(2025, 6, 1),
		CashAmount:    100,
		NetworkAmount: 50,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []DailyEntry{
		{UserID: "", Date: NewDate(2025, 6, 1)},
		{UserID: "u1"}, // zero date
		{UserID: "u1", Date: NewDate(2025, 6, 1), CashAmount: -1},
		{UserID: "u1", Date: NewDate(2025, 6, 1), NetworkAmount: math.NaN()},
		{UserID: "u1", Date: NewDate(2025, 6, 1), Attachments: make([]Attachment, MaxAttachments+1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDeductionValidate(t *testing.T) {
	good := Deduction{UserID: "u1", Date: NewDate(2025, 6, 10), Amount: 50, Reason: "late"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Deduction{
		{UserID: "u1", Amount: 0, Reason: "r"},
		{UserID: "u1", Amount: -5, Reason: "r"},
		{UserID: "u1", Amount: 10, Reason: "   "},
		{UserID: "", Amount: 10, Reason: "r"},
	}
	for i, d := range bads {
		if err := d.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
