package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/utils"
)

// ProblemType represents the kind of validation problem
type ProblemType string

const (
	ProblemInvalidHabit      ProblemType = "invalid_habit"
	ProblemInvalidProgress   ProblemType = "invalid_progress"
	ProblemDuplicateTitle    ProblemType = "duplicate_title"
	ProblemOrphanProgress    ProblemType = "orphan_progress"
	ProblemCompletedMismatch ProblemType = "completed_mismatch"
	ProblemProgressOnDeleted ProblemType = "progress_on_deleted_habit"
)

// Problem is one detected issue in habits or progress
type Problem struct {
	Type        ProblemType
	Description string
	IDs         []string
}

type ValidationResult struct {
	Problems []Problem
}

func (vr *ValidationResult) HasProblems() bool {
	return len(vr.Problems) > 0
}

func (vr *ValidationResult) add(t ProblemType, desc string, ids ...string) {
	vr.Problems = append(vr.Problems, Problem{Type: t, Description: desc, IDs: ids})
}

// Err returns the first problem as an error wrapping sentinel, or nil.
func (vr *ValidationResult) Err(sentinel error) error {
	if !vr.HasProblems() {
		return nil
	}
	return fmt.Errorf("%w: %s", sentinel, vr.Problems[0].Description)
}

// FormatReport returns a human-readable report of all problems
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasProblems() {
		return "No problems detected."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d problem(s):\n", len(vr.Problems))
	for _, p := range vr.Problems {
		fmt.Fprintf(&b, "- %s\n", p.Description)
	}
	return b.String()
}

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateHabit checks the user-editable fields of a single habit.
func (v *Validator) ValidateHabit(h models.Habit) ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(h.Title) == "" {
		result.add(ProblemInvalidHabit, "Habit title cannot be empty", h.HabitID)
	}
	if !h.Frequency.Valid() {
		result.add(ProblemInvalidHabit,
			fmt.Sprintf("Habit %q has invalid frequency %q (expected daily or weekly)", h.Title, h.Frequency), h.HabitID)
	}
	if h.Target < 0 {
		result.add(ProblemInvalidHabit, fmt.Sprintf("Habit %q has negative target %d", h.Title, h.Target), h.HabitID)
	}
	if h.ReminderTime != "" {
		if _, err := utils.ParseTime(h.ReminderTime); err != nil {
			result.add(ProblemInvalidHabit,
				fmt.Sprintf("Habit %q has invalid reminder time %q (expected HH:MM)", h.Title, h.ReminderTime), h.HabitID)
		}
	}
	if h.ReminderIntervalHours < 0 {
		result.add(ProblemInvalidHabit,
			fmt.Sprintf("Habit %q has negative reminder interval %d", h.Title, h.ReminderIntervalHours), h.HabitID)
	}
	return result
}

// ValidateProgress checks a single progress entry in isolation.
func (v *Validator) ValidateProgress(p models.Progress) ValidationResult {
	var result ValidationResult

	if p.HabitID == "" {
		result.add(ProblemInvalidProgress, "Progress entry has no habit", p.ProgressID)
	}
	if _, err := utils.ParseDate(p.Date); err != nil {
		result.add(ProblemInvalidProgress, fmt.Sprintf("Progress entry has invalid date %q (expected YYYY-MM-DD)", p.Date), p.ProgressID)
	}
	if p.Value < 0 {
		result.add(ProblemInvalidProgress, fmt.Sprintf("Progress value cannot be negative (got %d)", p.Value), p.ProgressID)
	}
	return result
}

// ValidateData cross-checks a user's stored habits and progress.
func (v *Validator) ValidateData(habits []models.Habit, progress []models.Progress) ValidationResult {
	var result ValidationResult

	byID := make(map[string]models.Habit, len(habits))
	titles := make(map[string][]string)
	for _, h := range habits {
		byID[h.HabitID] = h
		if h.Deleted {
			continue
		}
		result.Problems = append(result.Problems, v.ValidateHabit(h).Problems...)
		key := strings.ToLower(strings.TrimSpace(h.Title))
		if key != "" {
			titles[key] = append(titles[key], h.HabitID)
		}
	}

	dupes := make([]string, 0, len(titles))
	for title, ids := range titles {
		if len(ids) > 1 {
			dupes = append(dupes, title)
		}
	}
	sort.Strings(dupes)
	for _, title := range dupes {
		ids := titles[title]
		result.add(ProblemDuplicateTitle, fmt.Sprintf("Duplicate habit title: %q (IDs: %v)", title, ids), ids...)
	}

	for _, p := range progress {
		result.Problems = append(result.Problems, v.ValidateProgress(p).Problems...)

		h, ok := byID[p.HabitID]
		switch {
		case !ok:
			result.add(ProblemOrphanProgress,
				fmt.Sprintf("Progress %s refers to unknown habit %s", p.ProgressID, p.HabitID), p.ProgressID)
			continue
		case h.Deleted:
			result.add(ProblemProgressOnDeleted,
				fmt.Sprintf("Progress %s belongs to deleted habit %q", p.ProgressID, h.Title), p.ProgressID)
		}

		if want := models.IsCompleted(p.Value, h.Target); want != p.Completed {
			result.add(ProblemCompletedMismatch,
				fmt.Sprintf("Progress %s is stale: completed=%v but value %d against target %d gives %v",
					p.ProgressID, p.Completed, p.Value, h.Target, want), p.ProgressID)
		}
	}

	return result
}
