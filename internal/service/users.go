package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
)

// UserService manages local accounts. Users are not synced.
type UserService struct {
	store *sqlite.Store
	clock *clock
}

func NewUserService(store *sqlite.Store, opts ...Option) *UserService {
	o := buildOptions(opts)
	return &UserService{store: store, clock: newClock(o.now)}
}

// Register creates the user for email, or refreshes name and photo if it
// already exists.
func (s *UserService) Register(ctx context.Context, email, name, photoURL string) (models.User, error) {
	uid, err := canonicalUser(email)
	if err != nil {
		return models.User{}, err
	}
	if _, err := mail.ParseAddress(uid); err != nil {
		return models.User{}, fmt.Errorf("%w: %q is not an email address", ErrInvalidInput, email)
	}

	var user models.User
	err = s.store.WithTx(ctx, func(tx *sqlite.Store) error {
		now := s.clock.next(0)
		u := models.User{
			UserID:    uid,
			Name:      strings.TrimSpace(name),
			Email:     uid,
			PhotoURL:  photoURL,
			CreatedAt: now,
			UpdatedAt: now,
		}
		existing, err := tx.GetUser(ctx, uid)
		switch {
		case err == nil:
			u.CreatedAt = existing.CreatedAt
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		if err := tx.UpsertUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (models.User, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return models.User{}, err
	}
	return s.store.GetUser(ctx, uid)
}
