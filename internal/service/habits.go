package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/queue"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
	"github.com/julianstephens/habitsync/internal/validation"
)

// HabitInput is the user-editable part of a habit.
type HabitInput struct {
	Title                 string
	Icon                  string
	Frequency             models.Frequency
	Target                int
	ReminderTime          string
	ReminderIntervalHours int
	NotificationID        string
}

func (in HabitInput) apply(h *models.Habit) {
	h.Title = strings.TrimSpace(in.Title)
	h.Icon = in.Icon
	h.Frequency = in.Frequency
	if h.Frequency == "" {
		h.Frequency = models.FrequencyDaily
	}
	h.Target = in.Target
	h.ReminderTime = in.ReminderTime
	h.ReminderIntervalHours = in.ReminderIntervalHours
	h.NotificationID = in.NotificationID
}

type HabitService struct {
	store *sqlite.Store
	queue *queue.Queue
	clock *clock
}

func NewHabitService(store *sqlite.Store, q *queue.Queue, opts ...Option) *HabitService {
	o := buildOptions(opts)
	return &HabitService{store: store, queue: q, clock: newClock(o.now)}
}

// Add creates a habit with a fresh id and queues its upsert.
func (s *HabitService) Add(ctx context.Context, userID string, in HabitInput) (models.Habit, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return models.Habit{}, err
	}

	now := s.clock.next(0)
	h := models.Habit{
		HabitID:   uuid.NewString(),
		UserID:    uid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(&h)
	result := validator.ValidateHabit(h)
	if err := result.Err(ErrInvalidInput); err != nil {
		return models.Habit{}, err
	}

	err = s.store.WithTx(ctx, func(tx *sqlite.Store) error {
		if err := tx.InsertHabit(ctx, h); err != nil {
			return err
		}
		_, err := s.queue.Enqueue(ctx, tx, uid, models.HabitUpsert{Habit: h})
		return err
	})
	if err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

// Update replaces the editable fields of a live habit and queues the new
// snapshot.
func (s *HabitService) Update(ctx context.Context, userID, habitID string, in HabitInput) (models.Habit, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return models.Habit{}, err
	}

	var updated models.Habit
	err = s.store.WithTx(ctx, func(tx *sqlite.Store) error {
		h, err := tx.GetHabit(ctx, uid, habitID)
		if err != nil {
			return err
		}
		in.apply(&h)
		result := validator.ValidateHabit(h)
		if err := result.Err(ErrInvalidInput); err != nil {
			return err
		}
		h.UpdatedAt = s.clock.next(h.UpdatedAt)

		if err := tx.UpdateHabit(ctx, h); err != nil {
			return err
		}
		if _, err := s.queue.Enqueue(ctx, tx, uid, models.HabitUpsert{Habit: h}); err != nil {
			return err
		}
		updated = h
		return nil
	})
	if err != nil {
		return models.Habit{}, err
	}
	return updated, nil
}

// Delete soft-deletes a habit locally and queues removal of the remote copy.
func (s *HabitService) Delete(ctx context.Context, userID, habitID string) error {
	uid, err := canonicalUser(userID)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx *sqlite.Store) error {
		h, err := tx.GetHabit(ctx, uid, habitID)
		if err != nil {
			return err
		}
		if err := tx.SoftDeleteHabit(ctx, uid, habitID, s.clock.next(h.UpdatedAt)); err != nil {
			return err
		}
		_, err = s.queue.Enqueue(ctx, tx, uid, models.HabitDelete{HabitID: habitID})
		return err
	})
}

func (s *HabitService) Get(ctx context.Context, userID, habitID string) (models.Habit, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return models.Habit{}, err
	}
	return s.store.GetHabit(ctx, uid, habitID)
}

// List returns the user's live habits, newest first.
func (s *HabitService) List(ctx context.Context, userID string) ([]models.Habit, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListHabits(ctx, uid, false)
}

// InputFrom returns the editable fields of h, for read-modify-write edits.
func InputFrom(h models.Habit) HabitInput {
	return HabitInput{
		Title:                 h.Title,
		Icon:                  h.Icon,
		Frequency:             h.Frequency,
		Target:                h.Target,
		ReminderTime:          h.ReminderTime,
		ReminderIntervalHours: h.ReminderIntervalHours,
		NotificationID:        h.NotificationID,
	}
}

// Check cross-validates the user's stored habits and progress.
func (s *HabitService) Check(ctx context.Context, userID string) (validation.ValidationResult, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return validation.ValidationResult{}, err
	}
	habits, err := s.store.ListHabits(ctx, uid, true)
	if err != nil {
		return validation.ValidationResult{}, err
	}
	progress, err := s.store.ListUserProgress(ctx, uid)
	if err != nil {
		return validation.ValidationResult{}, err
	}
	return validator.ValidateData(habits, progress), nil
}
