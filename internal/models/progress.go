package models

// Progress is the record of one habit on one calendar day.
type Progress struct {
	ProgressID string `json:"progressId"`
	HabitID    string `json:"habitId"`
	UserID     string `json:"userId"`
	Date       string `json:"date"` // YYYY-MM-DD
	Value      int    `json:"value"`
	Completed  bool   `json:"completed"`
	Note       string `json:"note"`
	PhotoURI   string `json:"photoURI"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// ProgressID derives the composite key for a habit's entry on a day, so at most
// one row exists per (habit, date) without a lookup.
func ProgressID(habitID, date string) string {
	return habitID + "_" + date
}

// IsCompleted reports whether value meets target. With no target any positive
// value counts.
func IsCompleted(value, target int) bool {
	if target > 0 {
		return value >= target
	}
	return value > 0
}
