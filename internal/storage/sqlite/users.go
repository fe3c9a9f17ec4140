package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
)

// UpsertUser inserts a user or refreshes name/photo of an existing one. The
// original createdAt is kept.
func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO users (userId, name, email, photoURL, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(userId) DO UPDATE SET
			name = excluded.name,
			photoURL = excluded.photoURL,
			updatedAt = excluded.updatedAt`,
		u.UserID, u.Name, u.Email, nullString(u.PhotoURL), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.UserID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	var photoURL sql.NullString
	var createdAt, updatedAt sql.NullInt64

	err := s.QueryRowContext(ctx, `
		SELECT userId, name, email, photoURL, createdAt, updatedAt
		FROM users WHERE userId = ?`, userID).
		Scan(&u.UserID, &u.Name, &u.Email, &photoURL, &createdAt, &updatedAt)
	if err != nil {
		return models.User{}, notFound(err, "user "+userID)
	}
	u.PhotoURL = photoURL.String
	u.CreatedAt = createdAt.Int64
	u.UpdatedAt = updatedAt.Int64
	return u, nil
}
