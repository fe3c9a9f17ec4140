package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
)

const progressColumns = `progressId, habitId, userId, date, completed, value, note, photoURI, updatedAt`

func scanProgress(row rowScanner) (models.Progress, error) {
	var p models.Progress
	var completed int
	var value, updatedAt sql.NullInt64
	var note, photoURI sql.NullString

	err := row.Scan(&p.ProgressID, &p.HabitID, &p.UserID, &p.Date, &completed, &value, &note, &photoURI, &updatedAt)
	if err != nil {
		return models.Progress{}, err
	}
	p.Completed = completed != 0
	p.Value = int(value.Int64)
	p.Note = note.String
	p.PhotoURI = photoURI.String
	p.UpdatedAt = updatedAt.Int64
	return p, nil
}

// UpsertProgress writes the row for (habit, date), replacing any existing one.
func (s *Store) UpsertProgress(ctx context.Context, p models.Progress) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO progress (`+progressColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(progressId) DO UPDATE SET
			userId = excluded.userId,
			completed = excluded.completed,
			value = excluded.value,
			note = excluded.note,
			photoURI = excluded.photoURI,
			updatedAt = excluded.updatedAt`,
		p.ProgressID, p.HabitID, p.UserID, p.Date, boolToInt(p.Completed), p.Value, p.Note,
		nullString(p.PhotoURI), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert progress %s: %w", p.ProgressID, err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, userID, habitID, date string) (models.Progress, error) {
	row := s.QueryRowContext(ctx, `
		SELECT `+progressColumns+`
		FROM progress WHERE userId = ? AND habitId = ? AND date = ? LIMIT 1`,
		userID, habitID, date)

	p, err := scanProgress(row)
	if err != nil {
		return models.Progress{}, notFound(err, "progress "+models.ProgressID(habitID, date))
	}
	return p, nil
}

// ListProgress returns a habit's entries between two inclusive dates, newest first.
func (s *Store) ListProgress(ctx context.Context, userID, habitID, from, to string) ([]models.Progress, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT `+progressColumns+`
		FROM progress
		WHERE userId = ? AND habitId = ? AND date >= ? AND date <= ?
		ORDER BY date DESC`,
		userID, habitID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

// CompletedDates returns up to limit completed dates for a habit, newest first.
func (s *Store) CompletedDates(ctx context.Context, userID, habitID string, limit int) ([]string, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT date FROM progress
		WHERE userId = ? AND habitId = ? AND completed = 1
		ORDER BY date DESC LIMIT ?`,
		userID, habitID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListUserProgress returns every progress row a user owns, ordered by habit
// then date.
func (s *Store) ListUserProgress(ctx context.Context, userID string) ([]models.Progress, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT `+progressColumns+`
		FROM progress WHERE userId = ?
		ORDER BY habitId, date`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}
