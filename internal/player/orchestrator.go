// Package player drives what a single display shows. All resolution, cursor
// movement and state transitions run on one goroutine (Run); everything else
// talks to it over channels and reads immutable snapshots.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/metrics"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/playlist"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/provider"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/resolver"
)

type ScheduleProvider interface {
	FetchSchedules(ctx context.Context, displayID string) ([]model.Schedule, error)
}

type ContentProvider interface {
	FetchContent(ctx context.Context, contentID string) (model.Content, error)
}

// CacheInvalidator is implemented by content providers that cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Channel opens the live-update stream. The stream is closed when the
// transport drops.
type Channel interface {
	Subscribe(ctx context.Context, displayID string) (<-chan model.Event, error)
}

type PositionStore interface {
	Load(ctx context.Context, displayID string) (model.Position, bool, error)
	Save(ctx context.Context, displayID string, pos model.Position) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, status model.PlaybackStatus) error
}

type Config struct {
	DisplayID      string
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	FetchTimeout   time.Duration
}

const (
	DefaultPollInterval   = 15 * time.Second
	DefaultReconnectDelay = 5 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
)

type refreshMode int

const (
	// refreshSoft re-resolves and keeps an unchanged cursor.
	refreshSoft refreshMode = iota
	// refreshHard also refetches the current item's descriptor.
	refreshHard
	// refreshReload discards the cursor first; used after a finished item.
	refreshReload
)

type Orchestrator struct {
	cfg       Config
	schedules ScheduleProvider
	content   ContentProvider
	channel   Channel
	positions PositionStore
	status    StatusPublisher
	now       func() time.Time
	logger    zerolog.Logger

	// owned by the Run goroutine
	state         State
	active        *model.Schedule
	cursor        *playlist.Cursor
	current       *model.ResolvedContent
	currentItem   model.PlaylistItem
	sequence      uint64
	lastErr       error
	lastHeartbeat *time.Time
	debugEnabled  bool
	restoreTried  bool
	pendingReload bool
	pendingShow   bool

	snapshot    atomic.Pointer[Snapshot]
	completions chan uint64
	events      chan model.Event
	resyncs     chan chan error
	debug       *debugBus
}

// New builds an orchestrator for one display.
func New(cfg Config, schedules ScheduleProvider, content ContentProvider) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	o := &Orchestrator{
		cfg:         cfg,
		schedules:   schedules,
		content:     content,
		now:         time.Now,
		logger:      log.With().Str("component", "player").Str("display_id", cfg.DisplayID).Logger(),
		state:       StateUninitialized,
		completions: make(chan uint64, 8),
		events:      make(chan model.Event, 32),
		resyncs:     make(chan chan error),
		debug:       newDebugBus(),
	}
	o.publish()
	return o
}

// SetChannel attaches the live-update channel. Call before Run.
func (o *Orchestrator) SetChannel(ch Channel) { o.channel = ch }

// SetPositionStore enables resuming the playlist position after a restart.
func (o *Orchestrator) SetPositionStore(ps PositionStore) { o.positions = ps }

func (o *Orchestrator) SetStatusPublisher(sp StatusPublisher) { o.status = sp }

func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Current returns the latest snapshot. Safe from any goroutine.
func (o *Orchestrator) Current() Snapshot {
	return *o.snapshot.Load()
}

// CurrentResolvedContent is the content the renderer should show, or nil.
func (o *Orchestrator) CurrentResolvedContent() *model.ResolvedContent {
	return o.snapshot.Load().Content
}

// ReportCompletion tells the orchestrator the item started under sequence has
// finished. Reports for anything but the current sequence are dropped, so
// duplicates cannot advance twice.
func (o *Orchestrator) ReportCompletion(ctx context.Context, sequence uint64) error {
	select {
	case o.completions <- sequence:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resync forces a hard resync and waits for it to finish.
func (o *Orchestrator) Resync(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case o.resyncs <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver injects a live-update event, as if received from the channel.
func (o *Orchestrator) Deliver(ctx context.Context, ev model.Event) error {
	select {
	case o.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DebugUpdates streams debug overlay toggles. The returned cancel func must
// be called to release the subscription.
func (o *Orchestrator) DebugUpdates() (<-chan bool, func()) {
	ch := o.debug.subscribe()
	return ch, func() { o.debug.unsubscribe(ch) }
}

// Run executes the playback loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	if o.channel != nil {
		go o.superviseChannel(ctx)
	}

	o.logger.Info().Dur("poll_interval", o.cfg.PollInterval).Msg("playback loop started")
	o.refresh(ctx, refreshSoft, "startup")

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("playback loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.refresh(ctx, refreshSoft, "tick")
		case ev := <-o.events:
			o.handleEvent(ctx, ev)
		case seq := <-o.completions:
			o.handleCompletion(ctx, seq)
		case reply := <-o.resyncs:
			reply <- o.hardResync(ctx, "operator")
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev model.Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()
	o.logger.Debug().Str("event", string(ev.Type)).Msg("live update received")

	switch ev.Type {
	case model.EventConnected, model.EventContentChanged, model.EventScheduleChanged:
		_ = o.hardResync(ctx, string(ev.Type))
	case model.EventScheduleTriggered:
		o.refresh(ctx, refreshSoft, string(ev.Type))
	case model.EventHeartbeat:
		at := ev.ReceivedAt
		if at.IsZero() {
			at = o.now()
		}
		o.lastHeartbeat = &at
		metrics.LastHeartbeat.Set(float64(at.Unix()))
		o.publish()
	case model.EventDebugToggle:
		var p model.DebugTogglePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			o.logger.Warn().Err(err).Msg("malformed debug.toggle payload")
			return
		}
		o.debugEnabled = p.Enabled
		o.debug.publish(p.Enabled)
		o.publish()
	default:
		o.logger.Debug().Str("event", string(ev.Type)).Msg("ignoring unknown event type")
	}
}

func (o *Orchestrator) handleCompletion(ctx context.Context, seq uint64) {
	if seq != o.sequence || o.current == nil {
		metrics.CompletionsTotal.WithLabelValues("stale").Inc()
		o.logger.Debug().Uint64("sequence", seq).Uint64("current", o.sequence).Msg("dropping stale completion")
		return
	}
	if o.pendingShow {
		// the cursor already points past what is on screen; show that item
		// instead of advancing again
		metrics.CompletionsTotal.WithLabelValues("deferred").Inc()
		o.logger.Debug().Uint64("sequence", seq).Msg("completion while next item is pending, retrying it")
		o.refresh(ctx, refreshSoft, "completion")
		return
	}
	metrics.CompletionsTotal.WithLabelValues("accepted").Inc()
	o.restoreTried = true

	index, action := playlist.Advance(o.cursor)
	switch action {
	case playlist.ActionShow:
		o.cursor.Index = index
		item, _ := o.cursor.Current()
		o.show(ctx, item, true)
	case playlist.ActionReload:
		o.pendingReload = true
		o.refresh(ctx, refreshReload, "completion")
	}
}

// hardResync treats all local state as possibly stale.
func (o *Orchestrator) hardResync(ctx context.Context, reason string) error {
	if inv, ok := o.content.(CacheInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("content cache invalidation failed")
		}
	}
	o.refresh(ctx, refreshHard, reason)
	if o.state == StateError {
		return o.lastErr
	}
	return nil
}

// refresh fetches the schedule set, resolves it, and reconciles the cursor.
func (o *Orchestrator) refresh(ctx context.Context, mode refreshMode, reason string) {
	metrics.ResolvesTotal.WithLabelValues(reason).Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	schedules, err := o.schedules.FetchSchedules(fetchCtx, o.cfg.DisplayID)
	cancel()
	if err != nil {
		o.fail(&FetchFailure{Op: "schedules", ID: o.cfg.DisplayID, Err: err})
		return
	}
	o.state = StateResolving

	if o.pendingReload {
		mode = refreshReload
	}

	valid, invalid := resolver.Valid(schedules)
	for _, bad := range invalid {
		err := &ConfigurationError{ScheduleID: bad.Schedule.ID, Err: bad.Err}
		metrics.ErrorsTotal.WithLabelValues(errorKind(err)).Inc()
		o.logger.Warn().Err(err).Str("schedule_id", bad.Schedule.ID).Msg("skipping misconfigured schedule")
	}

	winner := resolver.Resolve(valid, o.now())
	if winner == nil {
		o.pendingReload = false
		o.goIdle(nil)
		return
	}

	next, err := playlist.Build(*winner)
	if err != nil {
		o.pendingReload = false
		o.goIdle(&ConfigurationError{ScheduleID: winner.ID, Err: err})
		return
	}

	if mode == refreshReload {
		o.cursor = nil
	}
	cursor, reset := playlist.Reconcile(o.cursor, next)
	if cursor != nil && (reset || !o.restoreTried) {
		o.restorePosition(ctx, winner.ID, cursor)
	}

	if o.active == nil || o.active.ID != winner.ID {
		o.logger.Info().Str("schedule_id", winner.ID).Int("priority", winner.Priority).
			Str("binding", string(winner.Binding.Kind())).Msg("schedule activated")
	}
	o.active = winner
	o.cursor = cursor

	item, ok := o.cursor.Current()
	if !ok {
		item = model.PlaylistItem{ContentID: winner.Binding.(model.SingleContent).ContentID}
	}

	restart := reset || mode == refreshReload || o.pendingShow || o.current == nil || !item.Same(o.currentItem)
	if !restart && mode != refreshHard {
		o.state = StatePlaying
		o.lastErr = nil
		o.publish()
		return
	}
	o.show(ctx, item, restart)
}

// restorePosition seeks the cursor to the persisted index when the saved
// position belongs to the same schedule and item list. It runs until one load
// succeeds or the first completion is accepted.
func (o *Orchestrator) restorePosition(ctx context.Context, scheduleID string, c *playlist.Cursor) {
	if o.positions == nil || o.restoreTried {
		return
	}

	pos, found, err := o.positions.Load(ctx, o.cfg.DisplayID)
	if err != nil {
		o.logger.Warn().Err(err).Msg("could not load saved position, will retry")
		return
	}
	o.restoreTried = true
	if !found || pos.ScheduleID != scheduleID || pos.Fingerprint != c.Fingerprint() {
		return
	}
	c.Seek(pos.Index)
	o.logger.Info().Int("index", c.Index).Str("schedule_id", scheduleID).Msg("resumed saved playlist position")
}

// show materializes item. With restart false the renderer is only restarted
// if the descriptor changed.
func (o *Orchestrator) show(ctx context.Context, item model.PlaylistItem, restart bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	content, err := o.content.FetchContent(fetchCtx, item.ContentID)
	cancel()
	if err != nil {
		o.pendingShow = true
		if errors.Is(err, provider.ErrNotFound) {
			scheduleID := ""
			if o.active != nil {
				scheduleID = o.active.ID
			}
			o.pendingReload = false
			o.goIdle(&ConfigurationError{ScheduleID: scheduleID, ContentID: item.ContentID, Err: err})
			return
		}
		o.fail(&FetchFailure{Op: "content", ID: item.ContentID, Err: err})
		return
	}

	resolved := model.Resolve(content, item.DurationOverride)
	o.pendingShow = false
	o.pendingReload = false
	o.lastErr = nil
	o.state = StatePlaying

	if !restart && o.current != nil && o.current.Equal(resolved) {
		o.publish()
		return
	}

	o.current = &resolved
	o.currentItem = item
	o.sequence++
	metrics.ItemsStartedTotal.Inc()

	ev := o.logger.Info().Str("content_id", resolved.ID).Str("type", string(resolved.Type)).
		Int("duration", resolved.Duration).Uint64("sequence", o.sequence)
	if o.cursor != nil {
		ev = ev.Int("index", o.cursor.Index).Int("items", len(o.cursor.Items))
	}
	ev.Msg("showing content")

	o.publish()
	o.savePosition(ctx)
	o.reportStatus(ctx)
}

func (o *Orchestrator) goIdle(cause error) {
	if cause != nil {
		metrics.ErrorsTotal.WithLabelValues(errorKind(cause)).Inc()
		o.logger.Warn().Err(cause).Msg("no playable content, going idle")
	}
	wasIdle := o.snapshot.Load().State == StateIdle
	o.active = nil
	o.cursor = nil
	o.current = nil
	o.currentItem = model.PlaylistItem{}
	o.lastErr = cause
	o.state = StateIdle
	if !wasIdle {
		o.sequence++
		o.logger.Info().Msg("no active schedule")
	}
	o.publish()
}

// fail records a transient error. The last good content stays in the
// snapshot; the next poll retries.
func (o *Orchestrator) fail(err error) {
	metrics.ErrorsTotal.WithLabelValues(errorKind(err)).Inc()
	o.logger.Warn().Err(err).Msg("playback refresh failed, retrying on next poll")
	o.lastErr = err
	o.state = StateError
	o.publish()
}

// savePosition waits for the saved position to be read first so a failed
// load never overwrites it.
func (o *Orchestrator) savePosition(ctx context.Context) {
	if o.positions == nil || !o.restoreTried || o.cursor == nil || o.active == nil {
		return
	}
	pos := model.Position{
		ScheduleID:  o.active.ID,
		Fingerprint: o.cursor.Fingerprint(),
		Index:       o.cursor.Index,
		SavedAt:     o.now(),
	}
	if err := o.positions.Save(ctx, o.cfg.DisplayID, pos); err != nil {
		o.logger.Warn().Err(err).Msg("could not save playlist position")
	}
}

func (o *Orchestrator) reportStatus(ctx context.Context) {
	if o.status == nil {
		return
	}
	snap := o.Current()
	status := model.PlaybackStatus{
		Type:       "playback.status",
		DisplayID:  o.cfg.DisplayID,
		State:      string(snap.State),
		ScheduleID: snap.ScheduleID,
		Index:      snap.Index,
		Sequence:   snap.Sequence,
		Timestamp:  o.now(),
	}
	if snap.Content != nil {
		status.ContentID = snap.Content.ID
	}
	if err := o.status.PublishStatus(ctx, status); err != nil {
		o.logger.Debug().Err(err).Msg("could not publish playback status")
	}
}

// publish replaces the snapshot readers see.
func (o *Orchestrator) publish() {
	snap := &Snapshot{
		State:         o.state,
		DisplayID:     o.cfg.DisplayID,
		Content:       o.current,
		Sequence:      o.sequence,
		Debug:         o.debugEnabled,
		LastHeartbeat: o.lastHeartbeat,
		UpdatedAt:     o.now(),
	}
	if o.active != nil {
		snap.ScheduleID = o.active.ID
	}
	if o.cursor != nil {
		snap.Index = o.cursor.Index
		snap.Items = len(o.cursor.Items)
	} else if o.current != nil {
		snap.Items = 1
	}
	if o.lastErr != nil {
		snap.Error = o.lastErr.Error()
	}
	o.snapshot.Store(snap)

	for _, s := range allStates {
		v := 0.0
		if s == o.state {
			v = 1
		}
		metrics.State.WithLabelValues(string(s)).Set(v)
	}
}
