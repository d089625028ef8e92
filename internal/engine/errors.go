package engine

import (
	"fmt"
	"time"
)

// ConfigError reports an invalid configuration value. It is raised before any
// computation starts and always identifies the offending field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// InsufficientDataError reports a required segment with zero bars. The message
// includes the date range actually covered by the data so the caller can see
// how far off the requested window is.
type InsufficientDataError struct {
	Segment    string
	Start      time.Time
	End        time.Time
	DataMin    time.Time
	DataMax    time.Time
	HasAnyData bool
}

func (e *InsufficientDataError) Error() string {
	if !e.HasAnyData {
		return fmt.Sprintf("%s segment has zero bars in %s..%s (no data available)",
			e.Segment, formatDate(e.Start), formatDate(e.End))
	}
	return fmt.Sprintf("%s segment has zero bars in %s..%s (data covers %s..%s)",
		e.Segment, formatDate(e.Start), formatDate(e.End), formatDate(e.DataMin), formatDate(e.DataMax))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "latest"
	}
	return t.Format("2006-01-02")
}
