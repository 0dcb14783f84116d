package syncer

import (
	"github.com/zencamp/zencamp/internal/common/apperrors"
)

var (
	// ErrSync is the base error for sync runs.
	ErrSync apperrors.Error = apperrors.New("sync failed")

	// ErrSetup is returned when the run cannot start: the target project or
	// todo list cannot be resolved, or the configured groups are unknown.
	ErrSetup apperrors.Error = ErrSync.New("unable to prepare sync target")

	// ErrFetch is returned when tickets cannot be listed.
	ErrFetch apperrors.Error = ErrSync.New("unable to fetch tickets")

	// ErrIncomplete is returned when at least one ticket failed.
	ErrIncomplete apperrors.Error = ErrSync.New("some tickets were not synchronized")

	// ErrNotImplemented is returned by the reverse direction.
	ErrNotImplemented apperrors.Error = ErrSync.New("not implemented")
)
