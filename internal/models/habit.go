package models

import "strings"

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Habit is a user-defined trackable item. UpdatedAt is the logical clock
// (unix milliseconds) used for last-write-wins reconciliation.
type Habit struct {
	HabitID               string    `json:"habitId"`
	UserID                string    `json:"userId"`
	Title                 string    `json:"title"`
	Icon                  string    `json:"icon"`
	Frequency             Frequency `json:"frequency"`
	Target                int       `json:"target"`
	ReminderTime          string    `json:"reminderTime"` // HH:MM
	ReminderIntervalHours int       `json:"reminderIntervalHours"`
	NotificationID        string    `json:"notificationId"`
	CreatedAt             int64     `json:"createdAt"`
	UpdatedAt             int64     `json:"updatedAt"`
	Deleted               bool      `json:"deleted"`
}

// CanonicalUserID normalizes a user id (an email) into the join key shared by
// local rows, queue rows and remote document paths.
func CanonicalUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}
