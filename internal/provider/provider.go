// Package provider holds what the schedule and content backends share.
package provider

import "errors"

// ErrNotFound is returned by a backend when the requested content or display
// does not exist.
var ErrNotFound = errors.New("not found")
