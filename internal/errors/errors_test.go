package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      stderrors.New("something went wrong"),
			expected: "Error: something went wrong",
		},
		{
			name:     "wrapped known error gets hint",
			err:      fmt.Errorf("open store: %w", ErrNotInitialized),
			expected: "Error: open store: storage not initialized (hint: run 'habitsync init' first)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatHintsForEveryClass(t *testing.T) {
	for _, err := range []error{ErrNotInitialized, ErrNoUser, ErrNoRemote} {
		if got := Format(err); !strings.Contains(got, "(hint: ") {
			t.Errorf("Format(%v) = %q, want a hint", err, got)
		}
	}
}
