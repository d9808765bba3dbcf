// Package resolver picks the single active schedule for a display.
package resolver

import (
	"sort"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
)

// Resolve returns the active schedule with the highest priority at now, or
// nil when nothing is active. Ties go to the schedule seen first in input
// order.
func Resolve(schedules []model.Schedule, now time.Time) *model.Schedule {
	var best *model.Schedule
	for i := range schedules {
		s := &schedules[i]
		if !s.ActiveAt(now) {
			continue
		}
		if best == nil || s.Priority > best.Priority {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Active returns every schedule active at now in the order Resolve ranks
// them, winner first.
func Active(schedules []model.Schedule, now time.Time) []model.Schedule {
	out := make([]model.Schedule, 0, len(schedules))
	for _, s := range schedules {
		if s.ActiveAt(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Invalid pairs a schedule with the configuration error that excluded it.
type Invalid struct {
	Schedule model.Schedule
	Err      error
}

// Valid splits out schedules with a broken content binding so they can be
// reported without blocking resolution of the others. Input order is kept.
func Valid(schedules []model.Schedule) ([]model.Schedule, []Invalid) {
	valid := make([]model.Schedule, 0, len(schedules))
	var invalid []Invalid
	for _, s := range schedules {
		if err := s.Validate(); err != nil {
			invalid = append(invalid, Invalid{Schedule: s, Err: err})
			continue
		}
		valid = append(valid, s)
	}
	return valid, invalid
}
