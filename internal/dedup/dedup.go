// Package dedup records which helpdesk tickets have already been turned into
// todos. A Store is loaded in full when opened; membership checks are served
// from memory and every append is persisted before it returns.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/zencamp/zencamp/internal/common/apperrors"
)

var (
	// ErrDedup is the base error for dedup log failures.
	ErrDedup apperrors.Error = apperrors.New("dedup log error")

	// ErrCorrupt is returned when a log cannot be parsed.
	ErrCorrupt apperrors.Error = ErrDedup.New("dedup log is corrupt")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed apperrors.Error = ErrDedup.New("dedup log is closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend apperrors.Error = ErrDedup.New("unknown dedup backend")

	// ErrInvalidRecord is returned when appending a record without an id.
	ErrInvalidRecord apperrors.Error = ErrDedup.New("record has no id")
)

// Record marks one processed ticket.
type Record struct {
	ID    string    `json:"id"`
	Date  time.Time `json:"date"`
	RunID string    `json:"run_id,omitempty"`
}

// Store is a persisted set of processed ticket ids.
type Store interface {
	// Contains reports whether id has been recorded.
	Contains(id string) bool
	// Append records rec durably. Appending an id already present is a no-op.
	Append(ctx context.Context, rec Record) error
	// Records returns all records in the order they were appended.
	Records() []Record
	// Len returns the number of records.
	Len() int
	Close() error
}

const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// Open opens the store of the given backend at path. An empty backend means
// BackendJSONL.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSONL:
		return OpenJSONL(path)
	case BackendSQLite:
		return OpenSQLite(path)
	}
	return nil, ErrUnknownBackend.Msg(fmt.Sprintf("unknown dedup backend %q", backend))
}

// index keeps records in append order with O(1) membership.
type index struct {
	records []Record
	ids     map[string]struct{}
}

func newIndex() index {
	return index{ids: make(map[string]struct{})}
}

func (ix *index) contains(id string) bool {
	_, ok := ix.ids[id]
	return ok
}

func (ix *index) add(rec Record) bool {
	if ix.contains(rec.ID) {
		return false
	}
	ix.ids[rec.ID] = struct{}{}
	ix.records = append(ix.records, rec)
	return true
}

func (ix *index) snapshot() []Record {
	out := make([]Record, len(ix.records))
	copy(out, ix.records)
	return out
}
