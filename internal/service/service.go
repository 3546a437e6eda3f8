// Package service provides business logic for scrumbot operations.
package service

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput marks a request missing a required value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidReportType is returned for a report type other than
	// sprint, standup or employee.
	ErrInvalidReportType = errors.New("invalid report type")

	// ErrNoProject means no project could be resolved for a write.
	ErrNoProject = errors.New("no project")
)

// today returns the current UTC date at midnight.
func today(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
