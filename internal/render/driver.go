// Package render turns content durations into completion reports when no
// external renderer owns the item timer (headless mode and kiosks without a
// JS shell). Videos are never timed here; they complete via the API.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/player"
)

const (
	DefaultPollInterval = 250 * time.Millisecond
	// DefaultDuration is used for self-timed content that arrives without a
	// positive duration.
	DefaultDuration = 10 * time.Second
)

type Player interface {
	Current() player.Snapshot
	ReportCompletion(ctx context.Context, sequence uint64) error
}

// Timer is the subset of *time.Timer the driver needs.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Driver struct {
	player    Player
	interval  time.Duration
	afterFunc AfterFunc
	logger    zerolog.Logger

	mu     sync.Mutex
	seq    uint64
	timer  Timer
	slide  int
	slides int
}

func NewDriver(p Player, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Driver{
		player:    p,
		interval:  interval,
		afterFunc: realAfterFunc,
		logger:    log.With().Str("component", "render").Logger(),
	}
}

// Run watches the player's snapshot until ctx ends.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	defer d.stop()

	for {
		d.Observe(ctx, d.player.Current())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Slide is the slideshow frame currently on screen.
func (d *Driver) Slide() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slide
}

// Observe (re)arms the item timer whenever the snapshot's sequence moves.
func (d *Driver) Observe(ctx context.Context, snap player.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if snap.Sequence == d.seq {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq = snap.Sequence
	d.slide, d.slides = 0, 0

	if snap.State != player.StatePlaying || snap.Content == nil {
		return
	}
	c := snap.Content
	if c.SelfTimed() {
		d.logger.Debug().Str("content_id", c.ID).Msg("waiting for external completion")
		return
	}

	total := time.Duration(c.Duration) * time.Second
	if total <= 0 {
		total = DefaultDuration
	}

	if c.Type == model.ContentSlideshow && len(c.Slides) > 1 {
		d.slides = len(c.Slides)
		d.armSlide(ctx, snap.Sequence, total/time.Duration(d.slides))
		return
	}
	d.timer = d.afterFunc(total, func() { d.complete(ctx, snap.Sequence) })
}

// armSlide schedules the next frame, or completion after the last one.
// Callers hold d.mu.
func (d *Driver) armSlide(ctx context.Context, seq uint64, step time.Duration) {
	d.timer = d.afterFunc(step, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		if d.slide+1 >= d.slides {
			d.timer = nil
			d.mu.Unlock()
			d.complete(ctx, seq)
			return
		}
		d.slide++
		d.logger.Debug().Int("slide", d.slide).Uint64("sequence", seq).Msg("slide advanced")
		d.armSlide(ctx, seq, step)
		d.mu.Unlock()
	})
}

func (d *Driver) complete(ctx context.Context, seq uint64) {
	d.mu.Lock()
	current := d.seq
	d.mu.Unlock()
	if current != seq {
		return
	}
	if err := d.player.ReportCompletion(ctx, seq); err != nil {
		d.logger.Debug().Err(err).Uint64("sequence", seq).Msg("completion not delivered")
	}
}

func (d *Driver) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
