package player

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/playlist"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/provider"
)

type fakeSchedules struct {
	mu    sync.Mutex
	set   []model.Schedule
	err   error
	calls int
}

func (f *fakeSchedules) FetchSchedules(_ context.Context, _ string) ([]model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// hand out a deep-enough copy so every poll returns fresh allocations
	out := make([]model.Schedule, len(f.set))
	for i, s := range f.set {
		if pb, ok := s.Binding.(model.PlaylistBinding); ok {
			items := make([]model.PlaylistItem, len(pb.Playlist.Items))
			for j, it := range pb.Playlist.Items {
				items[j] = model.PlaylistItem{ContentID: it.ContentID}
				if it.DurationOverride != nil {
					d := *it.DurationOverride
					items[j].DurationOverride = &d
				}
			}
			pb.Playlist.Items = items
			s.Binding = pb
		}
		out[i] = s
	}
	return out, nil
}

func (f *fakeSchedules) replace(set ...model.Schedule) {
	f.mu.Lock()
	f.set = set
	f.mu.Unlock()
}

func (f *fakeSchedules) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeContent struct {
	mu            sync.Mutex
	items         map[string]model.Content
	err           error
	invalidations int
}

func newFakeContent(items ...model.Content) *fakeContent {
	f := &fakeContent{items: make(map[string]model.Content)}
	for _, c := range items {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeContent) FetchContent(_ context.Context, id string) (model.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Content{}, f.err
	}
	c, ok := f.items[id]
	if !ok {
		return model.Content{}, provider.ErrNotFound
	}
	return c, nil
}

func (f *fakeContent) Invalidate(context.Context) error {
	f.mu.Lock()
	f.invalidations++
	f.mu.Unlock()
	return nil
}

type memPositions struct {
	saved   map[string]model.Position
	loadErr error
	loads   int
}

func (m *memPositions) Load(_ context.Context, displayID string) (model.Position, bool, error) {
	m.loads++
	if m.loadErr != nil {
		return model.Position{}, false, m.loadErr
	}
	p, ok := m.saved[displayID]
	return p, ok, nil
}

func (m *memPositions) Save(_ context.Context, displayID string, pos model.Position) error {
	m.saved[displayID] = pos
	return nil
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func image(id string, seconds int) model.Content {
	return model.Content{ID: id, Name: id, Type: model.ContentImage, URL: "https://cdn.example/" + id, Duration: seconds}
}

func singleSchedule(id, contentID string, priority int) model.Schedule {
	return model.Schedule{ID: id, StartTime: t0.Add(-time.Hour), Priority: priority, IsActive: true,
		Binding: model.SingleContent{ContentID: contentID}}
}

func listSchedule(id string, ids ...string) model.Schedule {
	return model.Schedule{ID: id, StartTime: t0.Add(-time.Hour), Priority: 1, IsActive: true,
		Binding: model.ContentList{ContentIDs: ids}}
}

func playlistSchedule(id string, loop bool, items ...model.PlaylistItem) model.Schedule {
	return model.Schedule{ID: id, StartTime: t0.Add(-time.Hour), Priority: 1, IsActive: true,
		Binding: model.PlaylistBinding{Playlist: model.Playlist{Name: id, Loop: loop, Items: items}}}
}

type harness struct {
	o         *Orchestrator
	schedules *fakeSchedules
	content   *fakeContent
	now       time.Time
	ctx       context.Context
}

func newHarness(t *testing.T, content *fakeContent, set ...model.Schedule) *harness {
	t.Helper()
	h := &harness{schedules: &fakeSchedules{set: set}, content: content, now: t0, ctx: context.Background()}
	h.o = New(Config{DisplayID: "lobby-1"}, h.schedules, h.content)
	h.o.SetClock(func() time.Time { return h.now })
	return h
}

func (h *harness) poll() { h.o.refresh(h.ctx, refreshSoft, "tick") }
func (h *harness) complete() { h.o.handleCompletion(h.ctx, h.o.Current().Sequence) }
func (h *harness) event(e model.Event) { h.o.handleEvent(h.ctx, e) }

func TestStartsUninitialized(t *testing.T) {
	h := newHarness(t, newFakeContent())
	snap := h.o.Current()
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Nil(t, h.o.CurrentResolvedContent())
}

func TestNoScheduleIsIdle(t *testing.T) {
	h := newHarness(t, newFakeContent())
	h.poll()
	snap := h.o.Current()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Content)

	seq := snap.Sequence
	h.poll()
	h.poll()
	assert.Equal(t, seq, h.o.Current().Sequence, "repeated idle polls must not restart the renderer")
}

func TestSingleContentWaitsForCompletionThenReresolves(t *testing.T) {
	h := newHarness(t, newFakeContent(image("a", 10)), singleSchedule("s1", "a", 1))
	h.poll()

	snap := h.o.Current()
	require.Equal(t, StatePlaying, snap.State)
	require.NotNil(t, snap.Content)
	assert.Equal(t, 10, snap.Content.Duration)
	assert.False(t, snap.Content.DurationOverridden)
	assert.Equal(t, uint64(1), snap.Sequence)

	// the core owns no item timer
	h.now = h.now.Add(10 * time.Second)
	assert.Equal(t, snap.Sequence, h.o.Current().Sequence)
	assert.Equal(t, "a", h.o.CurrentResolvedContent().ID)

	fetches := h.schedules.callCount()
	h.complete()
	assert.Equal(t, fetches+1, h.schedules.callCount(), "completion re-resolves")
	after := h.o.Current()
	assert.Equal(t, StatePlaying, after.State)
	assert.Equal(t, "a", after.Content.ID)
	assert.Equal(t, uint64(2), after.Sequence)
}

func TestNonLoopingPlaylistScenario(t *testing.T) {
	h := newHarness(t, newFakeContent(image("A", 30), image("B", 12)),
		playlistSchedule("p", false, model.PlaylistItem{ContentID: "A"}, model.PlaylistItem{ContentID: "B", DurationOverride: intp(5)}))
	h.poll()

	snap := h.o.Current()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "A", snap.Content.ID)
	assert.Equal(t, 30, snap.Content.Duration)

	h.complete()
	snap = h.o.Current()
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, "B", snap.Content.ID)
	assert.Equal(t, 5, snap.Content.Duration)
	assert.True(t, snap.Content.DurationOverridden)

	_, action := playlist.Advance(h.o.cursor)
	assert.Equal(t, playlist.ActionReload, action)

	// the playlist window is over; whatever is active next takes over
	h.schedules.replace(singleSchedule("fallback", "A", 0))
	fetches := h.schedules.callCount()
	h.complete()
	assert.Equal(t, fetches+1, h.schedules.callCount())
	snap = h.o.Current()
	assert.Equal(t, "fallback", snap.ScheduleID)
	assert.Equal(t, "A", snap.Content.ID)
}

func TestFinishedPlaylistStillActiveRestartsFromTop(t *testing.T) {
	h := newHarness(t, newFakeContent(image("A", 30), image("B", 12)),
		playlistSchedule("p", false, model.PlaylistItem{ContentID: "A"}, model.PlaylistItem{ContentID: "B"}))
	h.poll()
	h.complete()
	require.Equal(t, 1, h.o.Current().Index)

	h.complete()
	snap := h.o.Current()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "A", snap.Content.ID)
	assert.Equal(t, uint64(3), snap.Sequence)
}

func TestContentListLoops(t *testing.T) {
	h := newHarness(t, newFakeContent(image("X", 5), image("Y", 5), image("Z", 5)),
		listSchedule("l", "X", "Y", "Z"))
	h.poll()
	require.True(t, h.o.cursor.Loop)

	var seen []string
	for i := 0; i < 3; i++ {
		h.complete()
		seen = append(seen, h.o.CurrentResolvedContent().ID)
	}
	assert.Equal(t, []string{"Y", "Z", "X"}, seen)
	assert.Equal(t, 0, h.o.Current().Index)
}

func TestRepollWithIdenticalListKeepsPosition(t *testing.T) {
	h := newHarness(t, newFakeContent(image("A", 30), image("B", 12)),
		playlistSchedule("p", true, model.PlaylistItem{ContentID: "A"}, model.PlaylistItem{ContentID: "B", DurationOverride: intp(5)}))
	h.poll()
	h.complete()
	before := h.o.Current()
	require.Equal(t, 1, before.Index)

	for i := 0; i < 4; i++ {
		h.poll()
	}
	after := h.o.Current()
	assert.Equal(t, 1, after.Index)
	assert.Equal(t, before.Sequence, after.Sequence)
	assert.Equal(t, "B", after.Content.ID)
}

func TestChangedListResetsPosition(t *testing.T) {
	h := newHarness(t, newFakeContent(image("A", 30), image("B", 12), image("C", 8)),
		playlistSchedule("p", true, model.PlaylistItem{ContentID: "A"}, model.PlaylistItem{ContentID: "B"}))
	h.poll()
	h.complete()
	require.Equal(t, 1, h.o.Current().Index)

	h.schedules.replace(playlistSchedule("p", true, model.PlaylistItem{ContentID: "B"}, model.PlaylistItem{ContentID: "A"}))
	h.poll()
	snap := h.o.Current()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "B", snap.Content.ID)
	assert.Equal(t, uint64(3), snap.Sequence)
}

func TestTriggeredOnLastItemDoesNotReset(t *testing.T) {
	h := newHarness(t, newFakeContent(image("A", 30), image("B", 12)),
		playlistSchedule("p", false, model.PlaylistItem{ContentID: "A"}, model.PlaylistItem{ContentID: "B"}))
	h.poll()
	h.complete()
	before := h.o.Current()
	require.Equal(t, 1, before.Index)

	fetches := h.schedules.callCount()
	h.event(model.Event{Type: model.EventScheduleTriggered})
	after := h.o.Current()
	assert.Equal(t, fetches+1, h.schedules.callCount(), "triggered re-runs resolution")
	assert.Equal(t, 1, after.Index)
	assert.Equal(t, before.Sequence, after.Sequence)
}

func TestHigherPriorityScheduleTakesOver(t *testing.T) {
	h := newHarness(t, newFakeContent(image("a", 10), image("b", 10)), singleSchedule("low", "a", 1))
	h.poll()
	require.Equal(t, "a", h.o.CurrentResolvedContent().ID)

	h.schedules.replace(singleSchedule("low", "a", 1), singleSchedule("high", "b", 5))
	h.event(model.Event{Type: model.EventScheduleChanged})
	snap := h.o.Current()
	assert.Equal(t, "high", snap.ScheduleID)
	assert.Equal(t, "b", snap.Content.ID)
}

func TestStaleAndDuplicateCompletionsAreDropped(t *testing.T) {
	h := newHarness(t, newFakeContent(image("X", 5), image("Y", 5), image("Z", 5)),
		listSchedule("l", "X", "Y", "Z"))
	h.poll()
	seq := h.o.Current().Sequence

	h.o.handleCompletion(h.ctx, seq)
	h.o.handleCompletion(h.ctx, seq) // duplicate delivery
	h.o.handleCompletion(h.ctx, seq+10)
	assert.Equal(t, 1, h.o.Current().Index)
}

func TestScheduleFetchFailureIsTransient(t *testing.T) {
	h := newHarness(t, newFakeContent(image("a", 10)), singleSchedule("s", "a", 1))
	h.poll()
	seq := h.o.Current().Sequence

	h.schedules.mu.Lock()
	h.schedules.err = errors.New("connection refused")
	h.schedules.mu.Unlock()
	h.poll()

	snap := h.o.Current()
	assert.Equal(t, StateError, snap.State)
	assert.Contains(t, snap.Error, "connection refused")
	require.NotNil(t, snap.Content, "last good content is kept")
	var ff *FetchFailure
	assert.ErrorAs(t, h.o.lastErr, &ff)

	h.schedules.mu.Lock()
	h.schedules.err = nil
	h.schedules.mu.Unlock()
	h.poll()
	snap = h.o.Current()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, seq, snap.Sequence)
}

func TestFirstFetchFailureGoesToError(t *testing.T) {
	h := newHarness(t, newFakeContent(image("a", 10)), singleSchedule("s", "a", 1))
	h.schedules.err = errors.New("dns")
	h.poll()
	assert.Equal(t, StateError, h.o.Current().State)

	h.schedules.mu.Lock()
	h.schedules.err = nil
	h.schedules.mu.Unlock()
	h.poll()
	assert.Equal(t, StatePlaying, h.o.Current().State)
}

func TestContentFetchFailureRetriesSameItem(t *testing.T) {
	content := newFakeContent(image("X", 5), image("Y", 5))
	h := newHarness(t, content, listSchedule("l", "X", "Y"))
	h.poll()

	content.mu.Lock()
	content.err = errors.New("timeout")
	content.mu.Unlock()
	h.complete()
	assert.Equal(t, StateError, h.o.Current().State)

	content.mu.Lock()
	content.err = nil
	content.mu.Unlock()
	h.poll()
	snap := h.o.Current()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, "Y", snap.Content.ID)
	assert.Equal(t, 1, snap.Index)
}

func TestCompletionWhileSwitchPendingShowsNewFirstItem(t *testing.T) {
	content := newFakeContent(image("A", 5), image("B", 5), image("C", 5), image("D", 5))
	h := newHarness(t, content, listSchedule("l1", "A", "B"))
	h.poll()
	playing := h.o.Current()
	require.Equal(t, "A", playing.Content.ID)

	h.schedules.replace(listSchedule("l2", "C", "D"))
	content.mu.Lock()
	content.err = errors.New("timeout")
	content.mu.Unlock()
	h.poll()
	require.Equal(t, StateError, h.o.Current().State)

	// the renderer finishes A while C could not be fetched
	h.o.handleCompletion(h.ctx, playing.Sequence)
	snap := h.o.Current()
	assert.Equal(t, "A", snap.Content.ID)
	assert.Equal(t, 0, snap.Index)

	content.mu.Lock()
	content.err = nil
	content.mu.Unlock()
	h.o.handleCompletion(h.ctx, playing.Sequence)
	snap = h.o.Current()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, "C", snap.Content.ID)
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "l2", snap.ScheduleID)
}

func TestCompletionWhileNextItemPendingDoesNotSkip(t *testing.T) {
	content := newFakeContent(image("X", 5), image("Y", 5), image("Z", 5))
	h := newHarness(t, content, listSchedule("l", "X", "Y", "Z"))
	h.poll()
	seq := h.o.Current().Sequence

	content.mu.Lock()
	content.err = errors.New("timeout")
	content.mu.Unlock()
	h.complete()
	require.Equal(t, StateError, h.o.Current().State)

	content.mu.Lock()
	content.err = nil
	content.mu.Unlock()
	h.o.handleCompletion(h.ctx, seq)
	snap := h.o.Current()
	assert.Equal(t, "Y", snap.Content.ID)
	assert.Equal(t, 1, snap.Index)
}

func TestMisconfiguredScheduleDoesNotBlockOthers(t *testing.T) {
	broken := singleSchedule("broken", "", 9)
	broken.Binding = nil
	h := newHarness(t, newFakeContent(image("a", 10)), broken, singleSchedule("ok", "a", 1))
	h.poll()
	snap := h.o.Current()
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, "ok", snap.ScheduleID)
}

func TestMissingContentIsConfigurationErrorAndIdle(t *testing.T) {
	h := newHarness(t, newFakeContent(), singleSchedule("s", "gone", 1))
	h.poll()
	snap := h.o.Current()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Content)
	var ce *ConfigurationError
	require.ErrorAs(t, h.o.lastErr, &ce)
	assert.Equal(t, "gone", ce.ContentID)
	assert.ErrorIs(t, h.o.lastErr, provider.ErrNotFound)
}

func TestContentChangedRestartsOnlyWhenDescriptorChanged(t *testing.T) {
	content := newFakeContent(image("a", 10))
	h := newHarness(t, content, singleSchedule("s", "a", 1))
	h.poll()
	seq := h.o.Current().Sequence

	h.event(model.Event{Type: model.EventContentChanged})
	assert.Equal(t, 1, content.invalidations)
	assert.Equal(t, seq, h.o.Current().Sequence, "unchanged descriptor keeps playing")

	content.mu.Lock()
	c := content.items["a"]
	c.URL = "https://cdn.example/a-v2"
	content.items["a"] = c
	content.mu.Unlock()

	h.event(model.Event{Type: model.EventContentChanged})
	snap := h.o.Current()
	assert.Equal(t, seq+1, snap.Sequence)
	assert.Equal(t, "https://cdn.example/a-v2", snap.Content.URL)
}

func TestConnectedTriggersResync(t *testing.T) {
	content := newFakeContent(image("a", 10))
	h := newHarness(t, content, singleSchedule("s", "a", 1))
	h.poll()
	fetches := h.schedules.callCount()

	h.event(model.Event{Type: model.EventConnected})
	assert.Equal(t, fetches+1, h.schedules.callCount())
	assert.Equal(t, 1, content.invalidations)
}

func TestHeartbeatAndDebugToggle(t *testing.T) {
	h := newHarness(t, newFakeContent(image("a", 10)), singleSchedule("s", "a", 1))
	h.poll()
	updates, cancel := h.o.DebugUpdates()
	defer cancel()

	seq := h.o.Current().Sequence
	h.event(model.Event{Type: model.EventHeartbeat, ReceivedAt: t0.Add(time.Minute)})
	snap := h.o.Current()
	require.NotNil(t, snap.LastHeartbeat)
	assert.Equal(t, t0.Add(time.Minute), *snap.LastHeartbeat)
	assert.Equal(t, seq, snap.Sequence)

	h.event(model.Event{Type: model.EventDebugToggle, Payload: json.RawMessage(`{"enabled":true}`)})
	select {
	case enabled := <-updates:
		assert.True(t, enabled)
	default:
		t.Fatal("expected a debug toggle")
	}
	assert.True(t, h.o.Current().Debug)

	h.event(model.Event{Type: model.EventDebugToggle, Payload: json.RawMessage(`not json`)})
	assert.True(t, h.o.Current().Debug)
}

func TestResumesSavedPosition(t *testing.T) {
	set := listSchedule("l", "X", "Y", "Z")
	c, err := playlist.Build(set)
	require.NoError(t, err)

	positions := &memPositions{saved: map[string]model.Position{
		"lobby-1": {ScheduleID: "l", Fingerprint: c.Fingerprint(), Index: 2},
	}}
	h := newHarness(t, newFakeContent(image("X", 5), image("Y", 5), image("Z", 5)), set)
	h.o.SetPositionStore(positions)
	h.poll()

	snap := h.o.Current()
	assert.Equal(t, 2, snap.Index)
	assert.Equal(t, "Z", snap.Content.ID)

	h.complete()
	assert.Equal(t, 0, positions.saved["lobby-1"].Index)
}

func TestIgnoresSavedPositionForDifferentList(t *testing.T) {
	positions := &memPositions{saved: map[string]model.Position{
		"lobby-1": {ScheduleID: "l", Fingerprint: "stale", Index: 2},
	}}
	h := newHarness(t, newFakeContent(image("X", 5), image("Y", 5), image("Z", 5)), listSchedule("l", "X", "Y", "Z"))
	h.o.SetPositionStore(positions)
	h.poll()
	assert.Equal(t, 0, h.o.Current().Index)
}

func TestRetriesSavedPositionAfterLoadFailure(t *testing.T) {
	set := listSchedule("l", "X", "Y", "Z")
	c, err := playlist.Build(set)
	require.NoError(t, err)

	positions := &memPositions{
		saved:   map[string]model.Position{"lobby-1": {ScheduleID: "l", Fingerprint: c.Fingerprint(), Index: 2}},
		loadErr: errors.New("connection refused"),
	}
	h := newHarness(t, newFakeContent(image("X", 5), image("Y", 5), image("Z", 5)), set)
	h.o.SetPositionStore(positions)
	h.poll()
	assert.Equal(t, "X", h.o.Current().Content.ID)

	positions.loadErr = nil
	h.poll()
	snap := h.o.Current()
	assert.Equal(t, 2, snap.Index)
	assert.Equal(t, "Z", snap.Content.ID)

	loads := positions.loads
	h.poll()
	assert.Equal(t, loads, positions.loads, "no further loads once one succeeded")
}

type scriptedChannel struct {
	mu    sync.Mutex
	opens int
}

func (s *scriptedChannel) Subscribe(ctx context.Context, _ string) (<-chan model.Event, error) {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	ch := make(chan model.Event, 1)
	ch <- model.Event{Type: model.EventConnected}
	close(ch) // drop right away to exercise reconnect
	return ch, nil
}

func (s *scriptedChannel) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type recordingStatus struct {
	mu   sync.Mutex
	sent []model.PlaybackStatus
}

func (r *recordingStatus) PublishStatus(_ context.Context, st model.PlaybackStatus) error {
	r.mu.Lock()
	r.sent = append(r.sent, st)
	r.mu.Unlock()
	return nil
}

func (r *recordingStatus) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestRunReconnectsAndServesCompletions(t *testing.T) {
	content := newFakeContent(image("X", 5), image("Y", 5))
	schedules := &fakeSchedules{set: []model.Schedule{listSchedule("l", "X", "Y")}}
	o := New(Config{DisplayID: "lobby-1", PollInterval: time.Hour, ReconnectDelay: 10 * time.Millisecond}, schedules, content)
	o.SetClock(func() time.Time { return t0 })
	channel := &scriptedChannel{}
	o.SetChannel(channel)
	status := &recordingStatus{}
	o.SetStatusPublisher(status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return o.Current().State == StatePlaying }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return channel.openCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Greater(t, schedules.callCount(), 1, "every reconnect resyncs")

	require.NoError(t, o.ReportCompletion(ctx, o.Current().Sequence))
	require.Eventually(t, func() bool {
		c := o.CurrentResolvedContent()
		return c != nil && c.ID == "Y"
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, status.count(), 2)

	require.NoError(t, o.Resync(ctx))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
