// Package service holds the entity operations the CLI calls. Every mutation
// writes the local row and appends its sync task in one transaction, so the
// queue never holds a task for a write that did not happen and no committed
// write lacks its task.
package service

import (
	"errors"
	"sync"
	"time"

	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/validation"
)

var ErrInvalidInput = errors.New("invalid input")

// clock hands out logical timestamps: wall-clock milliseconds, bumped so a
// record's updatedAt always moves forward even if the wall clock does not.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func newClock(now func() time.Time) *clock {
	if now == nil {
		now = time.Now
	}
	return &clock{now: now}
}

// next returns a timestamp greater than both prev and anything handed out
// before.
func (c *clock) next(prev int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	if ts <= prev {
		ts = prev + 1
	}
	c.last = ts
	return ts
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the wall clock used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func canonicalUser(userID string) (string, error) {
	id := models.CanonicalUserID(userID)
	if id == "" {
		return "", apperrors.ErrNoUser
	}
	return id, nil
}

var validator = validation.New()
