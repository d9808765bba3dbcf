package model

import (
	"encoding/json"
	"time"
)

// EventType enumerates live-update notifications sent by the controller.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventContentChanged    EventType = "content.changed"
	EventScheduleChanged   EventType = "schedule.changed"
	EventScheduleTriggered EventType = "schedule.triggered"
	EventHeartbeat         EventType = "heartbeat"
	EventDebugToggle       EventType = "debug.toggle"
)

type Event struct {
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"-"`
}

type DebugTogglePayload struct {
	Enabled bool `json:"enabled"`
}

// PlaybackStatus is published back to the controller whenever a new item
// starts.
type PlaybackStatus struct {
	Type       string    `json:"type"`
	DisplayID  string    `json:"display_id"`
	State      string    `json:"state"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	ContentID  string    `json:"content_id,omitempty"`
	Index      int       `json:"index"`
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
}
