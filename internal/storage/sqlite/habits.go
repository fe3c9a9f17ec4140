package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

const habitColumns = `habitId, userId, title, icon, frequency, target, reminderTime,
	reminderIntervalHours, notificationId, createdAt, updatedAt, deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var icon, reminderTime, notificationID sql.NullString
	var target, reminderInterval, createdAt, updatedAt sql.NullInt64
	var frequency string
	var deleted int

	err := row.Scan(&h.HabitID, &h.UserID, &h.Title, &icon, &frequency, &target, &reminderTime,
		&reminderInterval, &notificationID, &createdAt, &updatedAt, &deleted)
	if err != nil {
		return models.Habit{}, err
	}

	h.Icon = icon.String
	h.Frequency = models.Frequency(frequency)
	h.Target = int(target.Int64)
	h.ReminderTime = reminderTime.String
	h.ReminderIntervalHours = int(reminderInterval.Int64)
	h.NotificationID = notificationID.String
	h.CreatedAt = createdAt.Int64
	h.UpdatedAt = updatedAt.Int64
	h.Deleted = deleted != 0
	return h, nil
}

func (s *Store) InsertHabit(ctx context.Context, h models.Habit) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.HabitID, h.UserID, h.Title, h.Icon, string(h.Frequency), h.Target, nullString(h.ReminderTime),
		h.ReminderIntervalHours, nullString(h.NotificationID), h.CreatedAt, h.UpdatedAt, boolToInt(h.Deleted))
	if err != nil {
		return fmt.Errorf("failed to insert habit %s: %w", h.HabitID, err)
	}
	return nil
}

// UpdateHabit overwrites the mutable fields of a live habit.
func (s *Store) UpdateHabit(ctx context.Context, h models.Habit) error {
	result, err := s.ExecContext(ctx, `
		UPDATE habits
		SET title = ?, icon = ?, frequency = ?, target = ?, reminderTime = ?,
			reminderIntervalHours = ?, notificationId = ?, updatedAt = ?
		WHERE habitId = ? AND userId = ? AND deleted = 0`,
		h.Title, h.Icon, string(h.Frequency), h.Target, nullString(h.ReminderTime),
		h.ReminderIntervalHours, nullString(h.NotificationID), h.UpdatedAt,
		h.HabitID, h.UserID)
	if err != nil {
		return fmt.Errorf("failed to update habit %s: %w", h.HabitID, err)
	}
	return requireRow(result, "habit "+h.HabitID)
}

// SoftDeleteHabit flags a habit deleted and bumps its logical clock. Rows are
// never removed so updatedAt-based reconciliation keeps working.
func (s *Store) SoftDeleteHabit(ctx context.Context, userID, habitID string, updatedAt int64) error {
	result, err := s.ExecContext(ctx, `
		UPDATE habits SET deleted = 1, updatedAt = ?
		WHERE habitId = ? AND userId = ? AND deleted = 0`,
		updatedAt, habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete habit %s: %w", habitID, err)
	}
	return requireRow(result, "habit "+habitID)
}

func (s *Store) GetHabit(ctx context.Context, userID, habitID string) (models.Habit, error) {
	row := s.QueryRowContext(ctx, `
		SELECT `+habitColumns+`
		FROM habits WHERE habitId = ? AND userId = ? AND deleted = 0`,
		habitID, userID)

	h, err := scanHabit(row)
	if err != nil {
		return models.Habit{}, notFound(err, "habit "+habitID)
	}
	return h, nil
}

// ListHabits returns a user's habits, newest first.
func (s *Store) ListHabits(ctx context.Context, userID string, includeDeleted bool) ([]models.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE userId = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY createdAt DESC, habitId`

	rows, err := s.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func requireRow(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}
