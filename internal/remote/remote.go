// Package remote is the document store the sync driver delivers to. Documents
// are addressed by (collection, key) and support get, merge-put and delete.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrUnreachable = errors.New("remote store unreachable")
)

// Document is a decoded JSON object. Numbers may surface as float64 or
// json.Number depending on the backend.
type Document map[string]any

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ToDocument converts any JSON-encodable value into a Document.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

type Path struct {
	Collection string
	Key        string
}

func (p Path) String() string {
	return p.Collection + "/" + p.Key
}

// HabitPath is users/{emailKey}/habits/{habitId}.
func HabitPath(emailKey, habitID string) Path {
	return Path{
		Collection: strings.Join([]string{"users", emailKey, "habits"}, "/"),
		Key:        habitID,
	}
}

// ProgressDayPath is users/{emailKey}/progress/{habitId}/days/{date}.
func ProgressDayPath(emailKey, habitID, date string) Path {
	return Path{
		Collection: strings.Join([]string{"users", emailKey, "progress", habitID, "days"}, "/"),
		Key:        date,
	}
}

// Store is the remote document API. Get reports absence with ok=false and a
// nil error. Put with merge overlays doc's top-level fields onto the existing
// document; without merge it replaces it. Delete of a missing document is not
// an error.
type Store interface {
	Get(ctx context.Context, p Path) (doc Document, ok bool, err error)
	Put(ctx context.Context, p Path, doc Document, merge bool) error
	Delete(ctx context.Context, p Path) error
}

// Pinger is implemented by stores that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lookup is Get with absence reported as ErrNotFound.
func Lookup(ctx context.Context, s Store, p Path) (Document, error) {
	doc, ok, err := s.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return doc, nil
}
