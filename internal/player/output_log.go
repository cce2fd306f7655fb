/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/playback"
)

// LogOutput is a headless audio element. It reports the same buffering and
// end-of-track signals a real element would, with logging in place of sound.
// Useful for dry runs and for driving the engine where no audio pipeline is
// available.
type LogOutput struct {
	name   string
	logger zerolog.Logger
	events chan playback.OutputEvent

	// BufferDelay is the simulated time between Load and CanPlay.
	BufferDelay time.Duration
	// PlayDuration, when positive, emits Ended that long after Play. Leave
	// zero for continuous sources like the live stream.
	PlayDuration time.Duration

	mu       sync.Mutex
	source   string
	volume   float64
	playing  bool
	endTimer *time.Timer
}

// NewLogOutput creates a logging output named for its role (live, announcer).
func NewLogOutput(name string, logger zerolog.Logger) *LogOutput {
	return &LogOutput{
		name:        name,
		logger:      logger.With().Str("component", "output").Str("output", name).Logger(),
		events:      make(chan playback.OutputEvent, 16),
		BufferDelay: 200 * time.Millisecond,
		volume:      1.0,
	}
}

func (o *LogOutput) Load(source string) {
	o.mu.Lock()
	o.source = source
	o.playing = false
	o.cancelEndTimerLocked()
	o.mu.Unlock()

	o.logger.Info().Str("source", source).Msg("loading source")
	time.AfterFunc(o.BufferDelay, func() {
		o.emit(playback.EventCanPlay)
	})
}

func (o *LogOutput) Preload(source string) {
	o.logger.Debug().Str("source", source).Msg("preload hint")
}

func (o *LogOutput) Play() error {
	o.mu.Lock()
	o.playing = true
	source := o.source
	o.cancelEndTimerLocked()
	if o.PlayDuration > 0 {
		o.endTimer = time.AfterFunc(o.PlayDuration, func() {
			o.emit(playback.EventEnded)
		})
	}
	o.mu.Unlock()

	o.logger.Info().Str("source", source).Msg("playing")
	return nil
}

func (o *LogOutput) Pause() {
	o.mu.Lock()
	o.playing = false
	o.cancelEndTimerLocked()
	o.mu.Unlock()

	o.logger.Info().Msg("paused")
}

func (o *LogOutput) SetVolume(volume float64) {
	o.mu.Lock()
	o.volume = volume
	o.mu.Unlock()

	o.logger.Debug().Float64("volume", volume).Msg("volume set")
}

func (o *LogOutput) Events() <-chan playback.OutputEvent {
	return o.events
}

func (o *LogOutput) emit(event playback.OutputEvent) {
	select {
	case o.events <- event:
	default:
		o.logger.Warn().Int("event", int(event)).Msg("event dropped, consumer lagging")
	}
}

func (o *LogOutput) cancelEndTimerLocked() {
	if o.endTimer != nil {
		o.endTimer.Stop()
		o.endTimer = nil
	}
}
