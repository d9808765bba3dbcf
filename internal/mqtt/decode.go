package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

var errMissingType = errors.New("message has no type")

// legacyTypes maps message types older controllers still publish.
var legacyTypes = map[string]model.EventType{
	"content_update":  model.EventContentChanged,
	"schedule_update": model.EventScheduleChanged,
}

// DecodeEvent parses a command-topic payload of the form
// {"type": "...", "payload": {...}}.
func DecodeEvent(data []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return model.Event{}, errMissingType
	}
	if mapped, ok := legacyTypes[string(ev.Type)]; ok {
		ev.Type = mapped
	}
	return ev, nil
}
