package domain

import "errors"

var (
	// ErrBaselineNotFound is returned when a check runs before any capture.
	ErrBaselineNotFound = errors.New("baseline not found")

	// ErrReportNotFound is returned when viewing a report that does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrMalformedBaseline is returned when a baseline line cannot be parsed.
	ErrMalformedBaseline = errors.New("malformed baseline line")

	// ErrLocked is returned when another process holds the instance lock.
	ErrLocked = errors.New("another integmon instance is running")
)
