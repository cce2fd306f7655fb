/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import "time"

// OutputEvent is an asynchronous signal from an audio output.
type OutputEvent int

const (
	// EventCanPlay fires when a loaded source has buffered enough to start.
	EventCanPlay OutputEvent = iota
	// EventEnded fires when the current source finished playing.
	EventEnded
	// EventError fires when the source failed to load or decode.
	EventError
)

// Output models one audio element. Implementations wrap whatever actually
// produces sound (a local audio pipeline, a logging stub in headless runs).
// All methods are expected to be non-blocking; completion is reported on
// Events.
type Output interface {
	// Load replaces the current source and begins buffering.
	Load(source string)
	// Preload hints that source will be needed shortly. Implementations may
	// ignore it; it must not disturb the current source.
	Preload(source string)
	Play() error
	Pause()
	SetVolume(volume float64)
	// Events delivers CanPlay/Ended/Error signals. The channel is owned by
	// the output and stays open for its lifetime.
	Events() <-chan OutputEvent
}

// Clock abstracts wall time so the engine's second matching is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FormatWallTime renders the second-resolution wall clock string that
// schedule entries are matched against.
func FormatWallTime(t time.Time) string {
	return t.Format("15:04:05")
}
