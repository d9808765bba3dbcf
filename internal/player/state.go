package player

import (
	"time"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateResolving     State = "resolving"
	StatePlaying       State = "playing"
	StateIdle          State = "idle"
	StateError         State = "error"
)

var allStates = []State{StateUninitialized, StateResolving, StatePlaying, StateIdle, StateError}

// Snapshot is the read-only view handed to the rendering layer. Sequence
// increases every time the renderer must start an item, including a reload
// that lands on the same content.
type Snapshot struct {
	State         State                  `json:"state"`
	DisplayID     string                 `json:"display_id"`
	ScheduleID    string                 `json:"schedule_id,omitempty"`
	Index         int                    `json:"index"`
	Items         int                    `json:"items"`
	Content       *model.ResolvedContent `json:"content,omitempty"`
	Sequence      uint64                 `json:"sequence"`
	Debug         bool                   `json:"debug"`
	Error         string                 `json:"error,omitempty"`
	LastHeartbeat *time.Time             `json:"last_heartbeat,omitempty"`
	UpdatedAt     time.Time              `json:"updated_at"`
}
