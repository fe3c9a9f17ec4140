// Package queue is the durable outbox of pending remote-side effects.
//
// Entity services append one task per local mutation, inside the same
// transaction as the mutation. The sync driver reads pending tasks in
// enqueue order and flips each to DONE or SKIPPED. Rows are never deleted;
// the table doubles as an audit trail.
//
// Delivery is at-least-once: a task whose remote write succeeded but whose
// status flip failed is written again on the next drain. Convergence relies on
// remote merge writes being idempotent and on last-write-wins by updatedAt.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

const taskColumns = `taskId, userId, operation, entity, docId, data, timestamp, status`

// Queue reads and finalizes tasks through db. Appends go through the Execer
// the caller passes so they join the caller's transaction.
type Queue struct {
	db        storage.Querier
	now       func() time.Time
	batchSize int
}

type Option func(*Queue)

// WithClock overrides the wall clock used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithBatchSize sets how many rows Pending reads per round trip.
func WithBatchSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.batchSize = n
		}
	}
}

func New(db storage.Querier, opts ...Option) *Queue {
	q := &Queue{
		db:        db,
		now:       time.Now,
		batchSize: constants.PendingBatchSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

var clock struct {
	mu   sync.Mutex
	last int64
}

// nextTimestamp returns unix milliseconds, strictly increasing within the
// process so FIFO order survives several enqueues in the same millisecond.
func nextTimestamp(now time.Time) int64 {
	clock.mu.Lock()
	defer clock.mu.Unlock()

	ts := now.UnixMilli()
	if ts <= clock.last {
		ts = clock.last + 1
	}
	clock.last = ts
	return ts
}

// Enqueue serializes p and appends it as a PENDING task for userID.
func (q *Queue) Enqueue(ctx context.Context, ex storage.Execer, userID string, p models.Payload) (string, error) {
	data, err := models.EncodePayload(p)
	if err != nil {
		return "", err
	}
	return q.Append(ctx, ex, userID, p.Operation(), p.Entity(), p.DocID(), data)
}

// Append inserts a PENDING task with already-serialized data (nil for NULL).
// It accepts shapes this build may not know how to dispatch.
func (q *Queue) Append(ctx context.Context, ex storage.Execer, userID string, op models.Operation, entity models.Entity, docID string, data []byte) (string, error) {
	taskID := uuid.NewString()
	ts := nextTimestamp(q.now())

	var payload sql.NullString
	if data != nil {
		payload = sql.NullString{String: string(data), Valid: true}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO sync_queue (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, userID, string(op), string(entity), docID, payload, ts, string(models.StatusPending))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s/%s for %s: %w", entity, op, docID, err)
	}
	return taskID, nil
}

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var t models.Task
	var op, entity string
	var data, status sql.NullString

	if err := row.Scan(&t.TaskID, &t.UserID, &op, &entity, &t.DocID, &data, &t.Timestamp, &status); err != nil {
		return models.Task{}, err
	}
	t.Operation = models.Operation(op)
	t.Entity = models.Entity(entity)
	if data.Valid {
		t.Data = []byte(data.String)
	}
	t.Status = models.StatusPending
	if status.Valid {
		t.Status = models.TaskStatus(status.String)
	}
	return t, nil
}

// Pending yields the user's PENDING tasks in ascending timestamp order
// (taskId breaks ties). Rows are fetched lazily in batches with keyset
// paging, and no cursor stays open while the caller handles a task, so the
// caller may write to the store between iterations. Each call re-reads
// current state; iteration stops at the first error.
func (q *Queue) Pending(ctx context.Context, userID string) iter.Seq2[models.Task, error] {
	return func(yield func(models.Task, error) bool) {
		var afterTS int64 = -1
		afterID := ""

		for {
			batch, err := q.pendingBatch(ctx, userID, afterTS, afterID)
			if err != nil {
				yield(models.Task{}, err)
				return
			}
			for _, t := range batch {
				if !yield(t, nil) {
					return
				}
			}
			if len(batch) < q.batchSize {
				return
			}
			last := batch[len(batch)-1]
			afterTS, afterID = last.Timestamp, last.TaskID
		}
	}
}

func (q *Queue) pendingBatch(ctx context.Context, userID string, afterTS int64, afterID string) ([]models.Task, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM sync_queue
		WHERE userId = ? AND status = ?
			AND (timestamp > ? OR (timestamp = ? AND taskId > ?))
		ORDER BY timestamp ASC, taskId ASC
		LIMIT ?`,
		userID, string(models.StatusPending), afterTS, afterTS, afterID, q.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending tasks: %w", err)
	}
	defer rows.Close()

	batch := make([]models.Task, 0, q.batchSize)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		batch = append(batch, t)
	}
	return batch, rows.Err()
}

// MarkDone finalizes a task as delivered. No-op unless the task is PENDING.
func (q *Queue) MarkDone(ctx context.Context, taskID string) error {
	return q.finalize(ctx, taskID, models.StatusDone)
}

// MarkSkipped finalizes a task as dropped. No-op unless the task is PENDING.
func (q *Queue) MarkSkipped(ctx context.Context, taskID string) error {
	return q.finalize(ctx, taskID, models.StatusSkipped)
}

func (q *Queue) finalize(ctx context.Context, taskID string, status models.TaskStatus) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ? WHERE taskId = ? AND status = ?`,
		string(status), taskID, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark task %s %s: %w", taskID, status, err)
	}
	return nil
}

func (q *Queue) Get(ctx context.Context, taskID string) (models.Task, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM sync_queue WHERE taskId = ?`, taskID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}
	return t, err
}

// PendingCount is the "waiting to sync" readout for a user.
func (q *Queue) PendingCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_queue WHERE userId = ? AND status = ?`,
		userID, string(models.StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	return n, nil
}

// List returns the user's most recent tasks, newest first, optionally filtered
// by status. A limit <= 0 means no limit.
func (q *Queue) List(ctx context.Context, userID string, statuses []models.TaskStatus, limit int) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM sync_queue WHERE userId = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY timestamp DESC, taskId DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
