package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Operation string

const (
	OpUpsert Operation = "UPSERT"
	OpDelete Operation = "DELETE"
)

type Entity string

const (
	EntityHabit    Entity = "HABIT"
	EntityProgress Entity = "PROGRESS"
)

type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusDone    TaskStatus = "DONE"
	StatusSkipped TaskStatus = "SKIPPED"
)

func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusSkipped
}

// Task is one row of the sync queue: a durable record of an intended
// remote-side effect. Data is nil when the column is NULL.
type Task struct {
	TaskID    string     `json:"taskId"`
	UserID    string     `json:"userId"`
	Operation Operation  `json:"operation"`
	Entity    Entity     `json:"entity"`
	DocID     string     `json:"docId"`
	Data      []byte     `json:"data,omitempty"`
	Timestamp int64      `json:"timestamp"`
	Status    TaskStatus `json:"status"`
}

var (
	// ErrUnknownShape marks an (entity, operation) pair this build cannot dispatch.
	ErrUnknownShape = errors.New("unknown task shape")
	// ErrMalformedPayload marks a task whose data is missing required fields.
	ErrMalformedPayload = errors.New("malformed task payload")
)

// Payload is the typed form of a task's data, one variant per
// (entity, operation) pair.
type Payload interface {
	Entity() Entity
	Operation() Operation
	DocID() string
	isPayload()
}

// HabitUpsert carries a full habit snapshot taken at enqueue time.
type HabitUpsert struct {
	Habit Habit
}

func (HabitUpsert) Entity() Entity       { return EntityHabit }
func (HabitUpsert) Operation() Operation { return OpUpsert }
func (p HabitUpsert) DocID() string      { return p.Habit.HabitID }
func (HabitUpsert) isPayload()           {}

// HabitDelete removes the remote habit document. It serializes to NULL.
type HabitDelete struct {
	HabitID string
}

func (HabitDelete) Entity() Entity       { return EntityHabit }
func (HabitDelete) Operation() Operation { return OpDelete }
func (p HabitDelete) DocID() string      { return p.HabitID }
func (HabitDelete) isPayload()           {}

// ProgressUpsert carries one day's progress for a habit.
type ProgressUpsert struct {
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Value     int    `json:"value"`
	Completed bool   `json:"completed"`
	Note      string `json:"note"`
	PhotoURI  string `json:"photoURI"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (ProgressUpsert) Entity() Entity       { return EntityProgress }
func (ProgressUpsert) Operation() Operation { return OpUpsert }
func (p ProgressUpsert) DocID() string      { return ProgressID(p.HabitID, p.Date) }
func (ProgressUpsert) isPayload()           {}

// EncodePayload serializes p into the queue's data column. A nil result
// means NULL.
func EncodePayload(p Payload) ([]byte, error) {
	switch v := p.(type) {
	case HabitUpsert:
		return json.Marshal(v.Habit)
	case HabitDelete:
		return nil, nil
	case ProgressUpsert:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownShape, p)
	}
}

// DecodeTask turns a queue row back into its typed payload. It returns
// ErrUnknownShape for pairs it does not know and ErrMalformedPayload when the
// data cannot satisfy the variant.
func DecodeTask(t Task) (Payload, error) {
	switch {
	case t.Entity == EntityHabit && t.Operation == OpUpsert:
		if len(t.Data) == 0 {
			return nil, fmt.Errorf("%w: habit upsert without data", ErrMalformedPayload)
		}
		var h Habit
		if err := json.Unmarshal(t.Data, &h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if h.HabitID == "" {
			h.HabitID = t.DocID
		}
		if h.HabitID == "" {
			return nil, fmt.Errorf("%w: habit upsert without habitId", ErrMalformedPayload)
		}
		if t.DocID != "" && h.HabitID != t.DocID {
			return nil, fmt.Errorf("%w: habitId %q does not match docId %q", ErrMalformedPayload, h.HabitID, t.DocID)
		}
		return HabitUpsert{Habit: h}, nil

	case t.Entity == EntityHabit && t.Operation == OpDelete:
		if t.DocID == "" {
			return nil, fmt.Errorf("%w: habit delete without docId", ErrMalformedPayload)
		}
		return HabitDelete{HabitID: t.DocID}, nil

	case t.Entity == EntityProgress && t.Operation == OpUpsert:
		if len(t.Data) == 0 {
			return nil, fmt.Errorf("%w: progress upsert without data", ErrMalformedPayload)
		}
		var p ProgressUpsert
		if err := json.Unmarshal(t.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if p.HabitID == "" || p.Date == "" {
			return nil, fmt.Errorf("%w: progress upsert requires habitId and date", ErrMalformedPayload)
		}
		if id := p.DocID(); t.DocID != "" && id != t.DocID {
			return nil, fmt.Errorf("%w: progress key %q does not match docId %q", ErrMalformedPayload, id, t.DocID)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownShape, t.Entity, t.Operation)
	}
}
