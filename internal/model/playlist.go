package model

import "time"

type Playlist struct {
	Name  string         `db:"name" json:"name"`
	Loop  bool           `db:"loop" json:"loop"`
	Items []PlaylistItem `db:"-"    json:"items"`
}

// PlaylistItem is one entry of a playlist. DurationOverride, in seconds,
// replaces the content's own duration when set.
type PlaylistItem struct {
	ContentID        string `db:"content_id" json:"content_id"`
	DurationOverride *int   `db:"duration"   json:"duration_override,omitempty"`
}

// Same is structural equality: same content and same override (nil only
// equals nil).
func (it PlaylistItem) Same(other PlaylistItem) bool {
	if it.ContentID != other.ContentID {
		return false
	}
	if it.DurationOverride == nil || other.DurationOverride == nil {
		return it.DurationOverride == nil && other.DurationOverride == nil
	}
	return *it.DurationOverride == *other.DurationOverride
}

// Position is the persisted playback position used to resume after a
// process restart.
type Position struct {
	ScheduleID  string    `json:"schedule_id"`
	Fingerprint string    `json:"fingerprint"`
	Index       int       `json:"index"`
	SavedAt     time.Time `json:"saved_at"`
}
