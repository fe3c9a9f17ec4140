package utils

import (
	"testing"
	"time"
)

func TestAddDays(t *testing.T) {
	tests := []struct {
		date string
		n    int
		want string
	}{
		{"2024-03-01", -1, "2024-02-29"},
		{"2023-03-01", -1, "2023-02-28"},
		{"2024-12-31", 1, "2025-01-01"},
		{"2024-06-15", 0, "2024-06-15"},
	}
	for _, tt := range tests {
		got, err := AddDays(tt.date, tt.n)
		if err != nil {
			t.Fatalf("AddDays(%q, %d) error: %v", tt.date, tt.n, err)
		}
		if got != tt.want {
			t.Errorf("AddDays(%q, %d) = %q, want %q", tt.date, tt.n, got, tt.want)
		}
	}
}

func TestParseDateRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "2024-13-01", "2024-02-30", "03/01/2024", "2024-3-1"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
		}
	}
}

func TestParseTime(t *testing.T) {
	if _, err := ParseTime("07:30"); err != nil {
		t.Errorf("ParseTime(07:30) error: %v", err)
	}
	if _, err := ParseTime("25:00"); err == nil {
		t.Error("ParseTime(25:00) expected error")
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, time.March, 5, 23, 59, 0, 0, time.UTC)
	if got := FormatDate(d); got != "2024-03-05" {
		t.Errorf("FormatDate() = %q", got)
	}
}
