package service

import (
	"context"
	"errors"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/queue"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
	"github.com/julianstephens/habitsync/internal/utils"
)

type ProgressInput struct {
	HabitID  string
	Date     string // YYYY-MM-DD
	Value    int
	Note     string
	PhotoURI string
}

type ProgressService struct {
	store *sqlite.Store
	queue *queue.Queue
	clock *clock
	today func() string
}

func NewProgressService(store *sqlite.Store, q *queue.Queue, opts ...Option) *ProgressService {
	o := buildOptions(opts)
	s := &ProgressService{store: store, queue: q, clock: newClock(o.now), today: utils.Today}
	if o.now != nil {
		s.today = func() string { return utils.FormatDate(o.now()) }
	}
	return s
}

// Upsert records the value for (habit, date), replacing any earlier entry for
// that day. Completed is derived from the habit's current target.
func (s *ProgressService) Upsert(ctx context.Context, userID string, in ProgressInput) (models.Progress, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return models.Progress{}, err
	}

	p := models.Progress{
		ProgressID: models.ProgressID(in.HabitID, in.Date),
		HabitID:    in.HabitID,
		UserID:     uid,
		Date:       in.Date,
		Value:      in.Value,
		Note:       in.Note,
		PhotoURI:   in.PhotoURI,
	}
	result := validator.ValidateProgress(p)
	if err := result.Err(ErrInvalidInput); err != nil {
		return models.Progress{}, err
	}

	err = s.store.WithTx(ctx, func(tx *sqlite.Store) error {
		h, err := tx.GetHabit(ctx, uid, in.HabitID)
		if err != nil {
			return err
		}

		var prev int64
		existing, err := tx.GetProgress(ctx, uid, in.HabitID, in.Date)
		switch {
		case err == nil:
			prev = existing.UpdatedAt
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		p.Completed = models.IsCompleted(p.Value, h.Target)
		p.UpdatedAt = s.clock.next(prev)

		if err := tx.UpsertProgress(ctx, p); err != nil {
			return err
		}
		_, err = s.queue.Enqueue(ctx, tx, uid, models.ProgressUpsert{
			HabitID:   p.HabitID,
			Date:      p.Date,
			Value:     p.Value,
			Completed: p.Completed,
			Note:      p.Note,
			PhotoURI:  p.PhotoURI,
			UpdatedAt: p.UpdatedAt,
		})
		return err
	})
	if err != nil {
		return models.Progress{}, err
	}
	return p, nil
}

// ForDate returns the entry for (habit, date), or storage.ErrNotFound.
func (s *ProgressService) ForDate(ctx context.Context, userID, habitID, date string) (models.Progress, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return models.Progress{}, err
	}
	return s.store.GetProgress(ctx, uid, habitID, date)
}

// History returns the habit's entries in a window of days ending today,
// newest first.
func (s *ProgressService) History(ctx context.Context, userID, habitID string, days int) ([]models.Progress, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return nil, err
	}
	if days < 1 {
		days = 1
	}
	to := s.today()
	from, err := utils.AddDays(to, -(days - 1))
	if err != nil {
		return nil, err
	}
	return s.store.ListProgress(ctx, uid, habitID, from, to)
}

// Streak counts consecutive completed days ending today, looking back at most
// StreakWindowDays completed entries. No completed entry today means 0.
func (s *ProgressService) Streak(ctx context.Context, userID, habitID string) (int, error) {
	uid, err := canonicalUser(userID)
	if err != nil {
		return 0, err
	}
	dates, err := s.store.CompletedDates(ctx, uid, habitID, constants.StreakWindowDays)
	if err != nil {
		return 0, err
	}

	done := make(map[string]bool, len(dates))
	for _, d := range dates {
		done[d] = true
	}

	streak := 0
	day := s.today()
	for done[day] {
		streak++
		if day, err = utils.AddDays(day, -1); err != nil {
			return 0, err
		}
	}
	return streak, nil
}
