package player

import (
	"errors"
	"fmt"
)

// FetchFailure means a schedule or content fetch failed. It is retried on the
// next poll.
type FetchFailure struct {
	Op  string // "schedules" or "content"
	ID  string
	Err error
}

func (e *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *FetchFailure) Unwrap() error { return e.Err }

// ConfigurationError means a schedule cannot produce content: it has no
// binding, an empty one, or references content that no longer resolves.
type ConfigurationError struct {
	ScheduleID string
	ContentID  string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.ContentID != "" {
		return fmt.Sprintf("schedule %q: content %q: %v", e.ScheduleID, e.ContentID, e.Err)
	}
	return fmt.Sprintf("schedule %q: %v", e.ScheduleID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ChannelDisconnected means the live-update transport dropped or could not be
// opened.
type ChannelDisconnected struct {
	Err error
}

func (e *ChannelDisconnected) Error() string {
	return fmt.Sprintf("live-update channel disconnected: %v", e.Err)
}

func (e *ChannelDisconnected) Unwrap() error { return e.Err }

// errorKind labels an error for logs and metrics.
func errorKind(err error) string {
	var (
		fetch   *FetchFailure
		config  *ConfigurationError
		channel *ChannelDisconnected
	)
	switch {
	case errors.As(err, &config):
		return "configuration"
	case errors.As(err, &fetch):
		return "fetch_" + fetch.Op
	case errors.As(err, &channel):
		return "channel"
	default:
		return "unknown"
	}
}
