package model

import "time"

type ContentType string

const (
	ContentImage     ContentType = "image"
	ContentVideo     ContentType = "video"
	ContentSlideshow ContentType = "slideshow"
	ContentText      ContentType = "text"
)

// Content is the descriptor returned by the content provider. Duration is in
// seconds and is ignored for video, which times itself.
type Content struct {
	ID        string         `db:"id"         json:"id"`
	Name      string         `db:"name"       json:"name"`
	Type      ContentType    `db:"type"       json:"type"`
	URL       string         `db:"url"        json:"url"`
	Duration  int            `db:"duration"   json:"duration"`
	Slides    []string       `db:"-"          json:"slides,omitempty"`
	Metadata  map[string]any `db:"-"          json:"metadata,omitempty"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// SelfTimed reports whether the content signals its own end of playback.
func (c Content) SelfTimed() bool {
	return c.Type == ContentVideo
}

// ResolvedContent is the content for the current cursor position with the
// playlist item's duration override applied.
type ResolvedContent struct {
	Content
	DurationOverridden bool `json:"duration_overridden"`
}

// Resolve applies a playlist item's override to c.
func Resolve(c Content, override *int) ResolvedContent {
	rc := ResolvedContent{Content: c}
	if override != nil {
		rc.Duration = *override
		rc.DurationOverridden = true
	}
	return rc
}

// Equal compares the fields the renderer acts on.
func (rc ResolvedContent) Equal(other ResolvedContent) bool {
	if rc.ID != other.ID || rc.Type != other.Type || rc.URL != other.URL ||
		rc.Duration != other.Duration || rc.Name != other.Name ||
		len(rc.Slides) != len(other.Slides) {
		return false
	}
	for i := range rc.Slides {
		if rc.Slides[i] != other.Slides[i] {
			return false
		}
	}
	return true
}
