// Package syncer drains a user's sync queue into the remote store.
//
// A drain runs only while connected. Tasks are handled one at a time in
// enqueue order and each ends in an Outcome: delivered tasks are marked DONE,
// tasks that can never be delivered are marked SKIPPED, and tasks that hit a
// remote failure stay PENDING for the next trigger. There is no backoff; retry
// frequency is whatever calls SyncNow.
//
// Delivery is at-least-once. If the process dies between the remote write and
// the status flip, the task is written again on the next drain; merge writes
// and last-write-wins on updatedAt make the repeat harmless.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/habitsync/internal/connectivity"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/queue"
	"github.com/julianstephens/habitsync/internal/remote"
	"github.com/julianstephens/habitsync/internal/resolver"
)

// Outcome is what happened to one task.
type Outcome int

const (
	// Done: the remote reflects the task.
	Done Outcome = iota
	// Retry: leave PENDING, try again on the next drain.
	Retry
	// Drop: never deliverable, or superseded by a newer remote version.
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Retry:
		return "retry"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Report summarizes one SyncNow call.
type Report struct {
	UserID    string
	Offline   bool
	Attempted int
	Done      int
	Skipped   int
	Retried   int
	Duration  time.Duration
}

type Driver struct {
	queue  *queue.Queue
	remote remote.Store
	conn   connectivity.Checker
	log    *log.Logger

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

type Option func(*Driver)

func WithLogger(l *log.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// New builds a driver. A nil remote or checker makes every drain an offline
// no-op.
func New(q *queue.Queue, r remote.Store, conn connectivity.Checker, opts ...Option) *Driver {
	if conn == nil {
		conn = connectivity.Offline
	}
	d := &Driver{
		queue:  q,
		remote: r,
		conn:   conn,
		log:    logger.Get(),
		users:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) userLock(userID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.users[userID]
	if !ok {
		m = &sync.Mutex{}
		d.users[userID] = m
	}
	return m
}

// SyncNow drains userID's pending tasks. Drains for the same user are
// serialized; different users proceed independently. Being offline is not an
// error: the report says Offline and nothing is touched. The returned error
// covers only failures to read the queue and ctx cancellation. Remote
// failures and failures to record a task's status are counted as Retried.
func (d *Driver) SyncNow(ctx context.Context, userID string) (report Report, err error) {
	start := time.Now()
	emailKey := models.CanonicalUserID(userID)
	report.UserID = emailKey
	if emailKey == "" {
		return report, nil
	}

	lock := d.userLock(emailKey)
	lock.Lock()
	defer lock.Unlock()

	if d.remote == nil || !d.conn.IsConnected(ctx) {
		report.Offline = true
		d.log.Debug("offline, sync deferred", "user", emailKey)
		return report, nil
	}

	defer func() { report.Duration = time.Since(start) }()

	for task, err := range d.queue.Pending(ctx, emailKey) {
		if err != nil {
			return report, fmt.Errorf("failed to load pending tasks: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Attempted++
		outcome := d.process(ctx, emailKey, task)

		var markErr error
		switch outcome {
		case Done:
			markErr = d.queue.MarkDone(ctx, task.TaskID)
		case Drop:
			markErr = d.queue.MarkSkipped(ctx, task.TaskID)
		}
		if markErr != nil {
			// The task stays PENDING and is delivered again next drain.
			d.log.Warn("failed to finalize task, will retry", "task", task.TaskID, "outcome", outcome, "err", markErr)
			outcome = Retry
		}

		switch outcome {
		case Done:
			report.Done++
		case Drop:
			report.Skipped++
		case Retry:
			report.Retried++
		}
	}

	if report.Attempted > 0 {
		d.log.Info("sync finished", "user", emailKey,
			"done", report.Done, "skipped", report.Skipped, "retried", report.Retried)
	}
	return report, ctx.Err()
}

// process delivers one task and reports its outcome. It never returns an
// error; failures are folded into Retry or Drop.
func (d *Driver) process(ctx context.Context, emailKey string, task models.Task) Outcome {
	payload, err := models.DecodeTask(task)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownShape):
			d.log.Warn("skipping task with unknown shape", "task", task.TaskID,
				"entity", task.Entity, "operation", task.Operation)
		default:
			d.log.Warn("skipping malformed task", "task", task.TaskID, "err", err)
		}
		return Drop
	}

	var outcome Outcome
	switch p := payload.(type) {
	case models.HabitUpsert:
		outcome, err = d.upsertHabit(ctx, emailKey, p)
	case models.HabitDelete:
		outcome, err = d.deleteHabit(ctx, emailKey, p)
	case models.ProgressUpsert:
		outcome, err = d.upsertProgress(ctx, emailKey, p)
	default:
		d.log.Warn("skipping task with no handler", "task", task.TaskID, "payload", fmt.Sprintf("%T", payload))
		return Drop
	}
	if err != nil {
		d.log.Warn("remote write failed, will retry", "task", task.TaskID, "doc", task.DocID, "err", err)
		return Retry
	}
	if outcome == Drop {
		d.log.Debug("remote is newer, skipping", "task", task.TaskID, "doc", task.DocID)
	}
	return outcome
}

func (d *Driver) upsertHabit(ctx context.Context, emailKey string, p models.HabitUpsert) (Outcome, error) {
	path := remote.HabitPath(emailKey, p.Habit.HabitID)
	current, _, err := d.remote.Get(ctx, path)
	if err != nil {
		return Retry, err
	}
	if resolver.Decide(current, p.Habit.UpdatedAt) == resolver.Skip {
		return Drop, nil
	}

	doc, err := remote.ToDocument(p.Habit)
	if err != nil {
		return Drop, nil
	}
	doc["userId"] = emailKey
	if err := d.remote.Put(ctx, path, doc, true); err != nil {
		return Retry, err
	}
	return Done, nil
}

// deleteHabit removes the remote document unconditionally.
func (d *Driver) deleteHabit(ctx context.Context, emailKey string, p models.HabitDelete) (Outcome, error) {
	if err := d.remote.Delete(ctx, remote.HabitPath(emailKey, p.HabitID)); err != nil {
		return Retry, err
	}
	return Done, nil
}

func (d *Driver) upsertProgress(ctx context.Context, emailKey string, p models.ProgressUpsert) (Outcome, error) {
	path := remote.ProgressDayPath(emailKey, p.HabitID, p.Date)
	current, _, err := d.remote.Get(ctx, path)
	if err != nil {
		return Retry, err
	}
	if resolver.Decide(current, p.UpdatedAt) == resolver.Skip {
		return Drop, nil
	}

	doc, err := remote.ToDocument(p)
	if err != nil {
		return Drop, nil
	}
	doc["userId"] = emailKey
	doc["habitId"] = p.HabitID
	doc["date"] = p.Date
	if err := d.remote.Put(ctx, path, doc, true); err != nil {
		return Retry, err
	}
	return Done, nil
}
