package model

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNoBinding        = errors.New("schedule has no content binding")
	ErrMultipleBindings = errors.New("schedule has more than one content binding")
	ErrEmptyBinding     = errors.New("schedule content binding is empty")
)

type BindingKind string

const (
	BindingSingle   BindingKind = "single"
	BindingList     BindingKind = "list"
	BindingPlaylist BindingKind = "playlist"
)

// Binding is what a schedule points at. It is one of SingleContent,
// ContentList or PlaylistBinding.
type Binding interface {
	Kind() BindingKind
}

type SingleContent struct {
	ContentID string
}

func (SingleContent) Kind() BindingKind { return BindingSingle }

// ContentList is the simple ordered form: it always loops and carries no
// per-item durations.
type ContentList struct {
	ContentIDs []string
}

func (ContentList) Kind() BindingKind { return BindingList }

type PlaylistBinding struct {
	Playlist Playlist
}

func (PlaylistBinding) Kind() BindingKind { return BindingPlaylist }

// Schedule binds a display to content for a time window.
type Schedule struct {
	ID        string
	DisplayID string
	Name      string
	StartTime time.Time
	EndTime   *time.Time
	Priority  int
	IsActive  bool
	Binding   Binding

	bindingErr error
}

// Validate reports configuration problems with the schedule's binding.
func (s Schedule) Validate() error {
	if s.bindingErr != nil {
		return s.bindingErr
	}
	switch b := s.Binding.(type) {
	case nil:
		return ErrNoBinding
	case SingleContent:
		if b.ContentID == "" {
			return ErrEmptyBinding
		}
	case ContentList:
		if len(b.ContentIDs) == 0 {
			return ErrEmptyBinding
		}
	case PlaylistBinding:
		if len(b.Playlist.Items) == 0 {
			return ErrEmptyBinding
		}
	}
	return nil
}

// ActiveAt reports whether the schedule window covers now. Both ends are
// inclusive.
func (s Schedule) ActiveAt(now time.Time) bool {
	if !s.IsActive || now.Before(s.StartTime) {
		return false
	}
	return s.EndTime == nil || !now.After(*s.EndTime)
}

// scheduleWire is the controller's JSON shape, with the three bindings as
// optional sibling fields.
type scheduleWire struct {
	ID              string     `json:"id"`
	DisplayID       string     `json:"display_id"`
	Name            string     `json:"name,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Priority        int        `json:"priority"`
	IsActive        bool       `json:"is_active"`
	SingleContentID *string    `json:"single_content_id,omitempty"`
	ContentIDs      []string   `json:"content_ids,omitempty"`
	Playlist        *Playlist  `json:"playlist,omitempty"`
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var w scheduleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Schedule{
		ID:        w.ID,
		DisplayID: w.DisplayID,
		Name:      w.Name,
		StartTime: w.StartTime,
		EndTime:   w.EndTime,
		Priority:  w.Priority,
		IsActive:  w.IsActive,
	}

	s.AssignBinding(w.SingleContentID, w.ContentIDs, w.Playlist)
	return nil
}

// AssignBinding sets the binding from the three optional source fields. Only
// non-empty fields count as populated: a schedule with more than one keeps no
// binding and fails Validate with ErrMultipleBindings, so it never fails
// decoding of the whole set. When every present field is empty the first one
// is kept so Validate reports ErrEmptyBinding.
func (s *Schedule) AssignBinding(singleContentID *string, contentIDs []string, playlist *Playlist) {
	var populated []Binding
	var empty Binding
	note := func(b Binding, ok bool) {
		if ok {
			populated = append(populated, b)
		} else if empty == nil {
			empty = b
		}
	}
	if singleContentID != nil {
		note(SingleContent{ContentID: *singleContentID}, *singleContentID != "")
	}
	if contentIDs != nil {
		note(ContentList{ContentIDs: contentIDs}, len(contentIDs) > 0)
	}
	if playlist != nil {
		note(PlaylistBinding{Playlist: *playlist}, len(playlist.Items) > 0)
	}

	s.Binding, s.bindingErr = nil, nil
	switch len(populated) {
	case 0:
		s.Binding = empty
	case 1:
		s.Binding = populated[0]
	default:
		s.bindingErr = ErrMultipleBindings
	}
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	w := scheduleWire{
		ID:        s.ID,
		DisplayID: s.DisplayID,
		Name:      s.Name,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Priority:  s.Priority,
		IsActive:  s.IsActive,
	}
	switch b := s.Binding.(type) {
	case SingleContent:
		id := b.ContentID
		w.SingleContentID = &id
	case ContentList:
		w.ContentIDs = b.ContentIDs
	case PlaylistBinding:
		pl := b.Playlist
		w.Playlist = &pl
	}
	return json.Marshal(w)
}
