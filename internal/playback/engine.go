/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/telemetry"
)

// Phase is the engine's position in the announcement cycle.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFadingOut    Phase = "fading_out"
	PhaseAnnouncement Phase = "announcement"
	PhaseFadingIn     Phase = "fading_in"
)

// Defaults for the playback cycle.
const (
	DefaultLoadTimeout     = 10 * time.Second
	DefaultPreloadWindow   = time.Minute
	DefaultPreloadInterval = 5 * time.Second
)

// Snapshot is the per-second view of the profile's gates and stream source.
// It is re-fetched fresh on every second boundary; the engine never caches
// gate flags across ticks.
type Snapshot struct {
	Blocked      bool
	AlarmBlocked bool
	StreamURL    string
}

// Config wires an engine to its surroundings.
type Config struct {
	ProfileID string

	// Snapshot returns the current gates and live stream URL.
	Snapshot func(ctx context.Context) (Snapshot, error)
	// Schedule returns the profile's timetable in stored order.
	Schedule func(ctx context.Context) ([]models.ScheduleEntry, error)
	// TrackURL resolves a track reference to a playable URL.
	TrackURL func(ref string) string

	Live      Output
	Announcer Output
	Clock     Clock
	Logger    zerolog.Logger

	LoadTimeout     time.Duration
	PreloadWindow   time.Duration
	PreloadInterval time.Duration
}

// State is an externally observable engine snapshot.
type State struct {
	Phase          Phase
	LiveVolume     float64
	ActiveTrackRef string
	LivePaused     bool
}

// Engine runs one profile's playback cycle: match the timetable once per
// wall-clock second, duck the live stream out, play the announcement, fade
// back in. Skipped seconds are never replayed.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	phase       Phase
	liveVolume  float64
	activeRef   string
	fade        []FadeStep
	fadeIndex   int
	lastSecond  string
	lastPreload time.Time
	preloaded   map[string]bool
	livePaused  bool
	liveLoaded  bool
}

// NewEngine creates an engine. Zero durations take the package defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.PreloadWindow <= 0 {
		cfg.PreloadWindow = DefaultPreloadWindow
	}
	if cfg.PreloadInterval <= 0 {
		cfg.PreloadInterval = DefaultPreloadInterval
	}

	return &Engine{
		cfg:        cfg,
		logger:     cfg.Logger.With().Str("component", "playback").Str("profile_id", cfg.ProfileID).Logger(),
		phase:      PhaseIdle,
		liveVolume: 1.0,
		preloaded:  make(map[string]bool),
		livePaused: true,
	}
}

// State returns the current externally observable state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Phase:          e.phase,
		LiveVolume:     e.liveVolume,
		ActiveTrackRef: e.activeRef,
		LivePaused:     e.livePaused,
	}
}

// Run drives the engine until ctx is cancelled. The internal cadence is the
// fade step interval; timetable matching happens once per wall-clock second
// on top of it.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(FadeStepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick is one cadence step. Exposed to tests through the clock: every call
// re-reads the clock, advances any running fade by one step, and runs the
// per-second work when the formatted second changed.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case PhaseFadingOut:
		if e.advanceFade() {
			e.beginAnnouncement(ctx)
		}
	case PhaseFadingIn:
		if e.advanceFade() {
			e.phase = PhaseIdle
			e.activeRef = ""
		}
	case PhaseAnnouncement:
		e.drainAnnouncer()
	}

	now := e.cfg.Clock.Now()
	second := FormatWallTime(now)
	if second == e.lastSecond {
		return
	}
	e.lastSecond = second
	e.secondTick(ctx, now, second)
}

// advanceFade applies the next scheduled volume step and reports completion.
func (e *Engine) advanceFade() bool {
	if e.fadeIndex < len(e.fade) {
		e.liveVolume = e.fade[e.fadeIndex].Volume
		e.cfg.Live.SetVolume(e.liveVolume)
		e.fadeIndex++
	}
	return e.fadeIndex >= len(e.fade)
}

func (e *Engine) secondTick(ctx context.Context, now time.Time, second string) {
	snap, err := e.cfg.Snapshot(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("snapshot fetch failed, skipping tick")
		return
	}

	if !e.liveLoaded && snap.StreamURL != "" {
		e.cfg.Live.Load(snap.StreamURL)
		e.liveLoaded = true
	}

	if snap.Blocked {
		e.applyHardGate()
		return
	}

	// Resume the live stream after an unblock. A pause left behind by a
	// failed announcement load is not touched; the next successful
	// announcement cycle restores it.
	if e.phase == PhaseIdle && e.livePaused && e.activeRef == "" && e.liveVolume > 0 {
		e.resumeLive()
	}
	e.drainLiveEvents(snap)

	if snap.AlarmBlocked || e.phase != PhaseIdle {
		return
	}

	entries, err := e.cfg.Schedule(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("schedule fetch failed, skipping tick")
		return
	}

	if now.Sub(e.lastPreload) >= e.cfg.PreloadInterval {
		e.lastPreload = now
		e.preloadUpcoming(entries, now)
	}

	// First match wins; duplicate times behind it are ignored this second.
	for _, entry := range entries {
		if entry.Time == second {
			e.startFadeOut(entry)
			return
		}
	}
}

// applyHardGate silences the live stream. There is no cancel primitive: a
// fade or announcement already in progress runs to completion, and the gate
// takes effect once the cycle returns to idle.
func (e *Engine) applyHardGate() {
	if e.phase != PhaseIdle {
		return
	}
	if !e.livePaused {
		e.cfg.Live.Pause()
		e.livePaused = true
		e.logger.Info().Msg("live stream paused, profile blocked")
	}
}

func (e *Engine) resumeLive() {
	if err := e.cfg.Live.Play(); err != nil {
		e.logger.Warn().Err(err).Msg("live stream resume failed")
		return
	}
	e.livePaused = false
	e.logger.Info().Msg("live stream resumed")
}

// drainLiveEvents handles the live output's buffered signals without
// blocking. CanPlay starts initial playback; a stream error is logged and
// retried by reloading on the next tick.
func (e *Engine) drainLiveEvents(snap Snapshot) {
	for {
		select {
		case event, ok := <-e.cfg.Live.Events():
			if !ok {
				return
			}
			switch event {
			case EventCanPlay:
				if e.phase == PhaseIdle && e.livePaused && e.activeRef == "" {
					e.resumeLive()
				}
			case EventError:
				e.logger.Warn().Str("url", snap.StreamURL).Msg("live stream error, reloading")
				e.liveLoaded = false
				e.livePaused = true
			}
		default:
			return
		}
	}
}

func (e *Engine) startFadeOut(entry models.ScheduleEntry) {
	e.activeRef = entry.TrackRef
	e.fade = FadeSchedule(e.liveVolume, 0.0)
	e.fadeIndex = 0
	e.phase = PhaseFadingOut
	telemetry.PlaybackFades.WithLabelValues("out").Inc()
	e.logger.Info().Str("track_ref", entry.TrackRef).Str("time", entry.Time).Msg("announcement due, fading out")
}

// beginAnnouncement loads the track and waits for it to become playable.
// The wait deliberately blocks the tick loop: nothing else is audible at this
// point, and seconds that pass during the wait are skipped, not replayed.
func (e *Engine) beginAnnouncement(ctx context.Context) {
	e.cfg.Live.Pause()
	e.livePaused = true

	url := e.cfg.TrackURL(e.activeRef)
	e.cfg.Announcer.Load(url)

	timeout := time.NewTimer(e.cfg.LoadTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			e.failAnnouncement("engine stopping")
			return
		case <-timeout.C:
			e.failAnnouncement("load timeout")
			return
		case event, ok := <-e.cfg.Announcer.Events():
			if !ok {
				e.failAnnouncement("announcer closed")
				return
			}
			switch event {
			case EventCanPlay:
				if err := e.cfg.Announcer.Play(); err != nil {
					e.failAnnouncement("play refused: " + err.Error())
					return
				}
				e.cfg.Announcer.SetVolume(1.0)
				e.phase = PhaseAnnouncement
				telemetry.AnnouncementsStarted.Inc()
				e.logger.Info().Str("track_ref", e.activeRef).Msg("announcement playing")
				return
			case EventError:
				e.failAnnouncement("load error")
				return
			case EventEnded:
				// Stale signal from the previous track.
			}
		}
	}
}

// failAnnouncement abandons the cycle. The live stream stays paused at zero
// volume; the audible gap is the intended signal that something went wrong,
// and the next successful announcement cycle restores playback.
func (e *Engine) failAnnouncement(reason string) {
	telemetry.AnnouncementLoadFailures.Inc()
	e.logger.Error().Str("track_ref", e.activeRef).Str("reason", reason).Msg("announcement failed, live stream stays paused")
	e.phase = PhaseIdle
	e.activeRef = ""
}

// drainAnnouncer watches for the announcement finishing. A playback error
// mid-announcement is treated like a normal end so the live stream returns.
func (e *Engine) drainAnnouncer() {
	for {
		select {
		case event, ok := <-e.cfg.Announcer.Events():
			if !ok {
				return
			}
			if event == EventEnded || event == EventError {
				e.finishAnnouncement()
				return
			}
		default:
			return
		}
	}
}

func (e *Engine) finishAnnouncement() {
	if err := e.cfg.Live.Play(); err != nil {
		e.logger.Warn().Err(err).Msg("live stream resume failed after announcement")
	} else {
		e.livePaused = false
	}

	e.fade = FadeSchedule(0.0, 1.0)
	e.fadeIndex = 0
	e.phase = PhaseFadingIn
	telemetry.PlaybackFades.WithLabelValues("in").Inc()
	e.logger.Info().Str("track_ref", e.activeRef).Msg("announcement finished, fading in")
}

// preloadUpcoming hints the single earliest future entry at the announcer
// when it falls within the preload window. The marker map is rebuilt per
// scan, so a row is preloaded once per approach and removed rows drop out.
func (e *Engine) preloadUpcoming(entries []models.ScheduleEntry, now time.Time) {
	var (
		nearest      *models.ScheduleEntry
		nearestDelta time.Duration
	)
	for i := range entries {
		target, err := time.Parse("15:04:05", entries[i].Time)
		if err != nil {
			continue
		}
		occurs := time.Date(now.Year(), now.Month(), now.Day(),
			target.Hour(), target.Minute(), target.Second(), 0, now.Location())
		delta := occurs.Sub(now)
		if delta < 0 {
			delta += 24 * time.Hour
		}
		if nearest == nil || delta < nearestDelta {
			nearest = &entries[i]
			nearestDelta = delta
		}
	}
	if nearest == nil || nearestDelta > e.cfg.PreloadWindow {
		e.preloaded = map[string]bool{}
		return
	}

	key := nearest.ID + "@" + nearest.Time
	if !e.preloaded[key] {
		e.cfg.Announcer.Preload(e.cfg.TrackURL(nearest.TrackRef))
		e.logger.Debug().Str("track_ref", nearest.TrackRef).Str("time", nearest.Time).Msg("announcement preloaded")
	}
	e.preloaded = map[string]bool{key: true}
}
