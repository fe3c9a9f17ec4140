// Package resolver decides whether a local snapshot may overwrite the remote
// copy of the same entity, using last-write-wins on updatedAt.
package resolver

import (
	"encoding/json"
	"math"
	"strconv"
)

type Decision int

const (
	Proceed Decision = iota
	Skip
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	default:
		return "decision(" + strconv.Itoa(int(d)) + ")"
	}
}

// UpdatedAtField is the document field holding the logical clock.
const UpdatedAtField = "updatedAt"

// Decide compares the remote document (nil when absent) with the local
// updatedAt. The remote wins only when strictly newer; ties go to the local
// write. A missing or non-numeric remote updatedAt counts as 0.
func Decide(remote map[string]any, localUpdatedAt int64) Decision {
	if remote == nil {
		return Proceed
	}
	if UpdatedAt(remote) > localUpdatedAt {
		return Skip
	}
	return Proceed
}

// UpdatedAt reads the logical clock out of a decoded document.
func UpdatedAt(doc map[string]any) int64 {
	switch v := doc[UpdatedAtField].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}
