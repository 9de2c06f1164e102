package util

import (
	"errors"
	"fmt"
	"learner_insight/internal/model"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidLearnerID   = errors.New("learner id is required")
	ErrInvalidActivity    = errors.New("invalid activity event")
	ErrActivityOutOfOrder = errors.New("activity event is older than the learner's last recorded event")
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrSessionNotFound    = errors.New("experience session not found")
	ErrInvalidCatalog     = errors.New("invalid catalog entry")
	ErrProfileUnavailable = errors.New("profile storage unavailable")
)

// MissingDataError marks absent data that callers resolve to a safe default.
type MissingDataError struct {
	What string
	ID   string
}

func (e *MissingDataError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("no %s data", e.What)
	}
	return fmt.Sprintf("no %s data for %s", e.What, e.ID)
}

// SourceUnavailableError is recorded when an analytics source cannot be reached,
// times out, or is short-circuited by its breaker.
type SourceUnavailableError struct {
	Source model.AnalyticsSource
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("analytics source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// IsMissingData reports whether err (or anything it wraps) is a MissingDataError.
func IsMissingData(err error) bool {
	var m *MissingDataError
	return errors.As(err, &m)
}
