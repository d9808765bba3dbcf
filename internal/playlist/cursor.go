// Package playlist owns the playback position within a multi-item schedule.
package playlist

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

// Action is what the orchestrator must do after an item completes.
type Action int

const (
	// ActionShow means show the item at the returned index.
	ActionShow Action = iota
	// ActionReload means re-run schedule resolution instead of repeating.
	ActionReload
)

func (a Action) String() string {
	switch a {
	case ActionShow:
		return "show"
	case ActionReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Cursor is the playback position over a resolved multi-item schedule.
// Index is always within [0, len(Items)) while Items is non-empty.
type Cursor struct {
	Items []model.PlaylistItem
	Index int
	Loop  bool
}

// Build converts a resolved schedule into a cursor. Single-content schedules
// have no cursor and return nil.
func Build(s model.Schedule) (*Cursor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch b := s.Binding.(type) {
	case model.ContentList:
		items := make([]model.PlaylistItem, len(b.ContentIDs))
		for i, id := range b.ContentIDs {
			items[i] = model.PlaylistItem{ContentID: id}
		}
		return &Cursor{Items: items, Loop: true}, nil
	case model.PlaylistBinding:
		items := make([]model.PlaylistItem, len(b.Playlist.Items))
		for i, it := range b.Playlist.Items {
			items[i] = model.PlaylistItem{ContentID: it.ContentID}
			if it.DurationOverride != nil {
				d := *it.DurationOverride
				items[i].DurationOverride = &d
			}
		}
		return &Cursor{Items: items, Loop: b.Playlist.Loop}, nil
	default:
		return nil, nil
	}
}

// SameItems reports whether both cursors hold structurally identical item
// lists. Order matters, so a reorder is a different list.
func (c *Cursor) SameItems(other *Cursor) bool {
	if c == nil || other == nil {
		return c == nil && other == nil
	}
	if len(c.Items) != len(other.Items) {
		return false
	}
	for i := range c.Items {
		if !c.Items[i].Same(other.Items[i]) {
			return false
		}
	}
	return true
}

// Reconcile decides which cursor survives a fresh resolution. An identical
// item list keeps the current cursor and its index; anything else takes the
// new cursor from index 0. The returned bool reports whether playback was
// reset.
func Reconcile(current, next *Cursor) (*Cursor, bool) {
	if current != nil && next != nil && current.SameItems(next) {
		current.Loop = next.Loop
		return current, false
	}
	if current == nil && next == nil {
		return nil, false
	}
	if next != nil {
		next.Index = 0
	}
	return next, true
}

// Current returns the item under the cursor.
func (c *Cursor) Current() (model.PlaylistItem, bool) {
	if c == nil || len(c.Items) == 0 {
		return model.PlaylistItem{}, false
	}
	return c.Items[c.Index], true
}

// Advance computes the transition taken when the current item completes.
// It does not mutate the cursor.
func Advance(c *Cursor) (int, Action) {
	if c == nil || len(c.Items) <= 1 {
		if c == nil {
			return 0, ActionReload
		}
		return c.Index, ActionReload
	}
	last := len(c.Items) - 1
	if c.Index == last && !c.Loop {
		return c.Index, ActionReload
	}
	if c.Loop {
		return (c.Index + 1) % len(c.Items), ActionShow
	}
	return min(c.Index+1, last), ActionShow
}

// Seek moves the cursor, clamping into range.
func (c *Cursor) Seek(index int) {
	if c == nil || len(c.Items) == 0 {
		return
	}
	c.Index = max(0, min(index, len(c.Items)-1))
}

// Fingerprint identifies the item list for position persistence.
func (c *Cursor) Fingerprint() string {
	if c == nil {
		return ""
	}
	data, _ := json.Marshal(c.Items)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
