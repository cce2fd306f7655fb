/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback drives a profile's player: a continuously playing live
// stream that ducks out for scheduled announcements and fades back in.
package playback

import (
	"math"
	"time"
)

// FadeStepInterval is the cadence of volume ramps. Ten steps of 0.1 over
// 200ms each makes a two second full-scale fade.
const FadeStepInterval = 200 * time.Millisecond

// fadeStepSize is the fixed per-step volume delta, a fraction of full scale
// rather than of the distance travelled. Short fades take fewer steps, they
// do not slow down.
const fadeStepSize = 0.1

// FadeStep is one scheduled volume change.
type FadeStep struct {
	Delay  time.Duration
	Volume float64
}

// FadeSchedule builds the step sequence from one volume to another. Volumes
// move in fixed 0.1 increments, each rounded to one decimal so repeated fades
// cannot accumulate float drift, and the final step always lands exactly on
// the target. A zero-distance fade still emits the single target step.
func FadeSchedule(from, to float64) []FadeStep {
	from = clampVolume(from)
	to = clampVolume(to)

	direction := 1.0
	if to < from {
		direction = -1.0
	}

	var steps []FadeStep
	delay := FadeStepInterval
	for current := from; ; {
		current = roundVolume(current + direction*fadeStepSize)
		if (direction > 0 && current >= to) || (direction < 0 && current <= to) {
			break
		}
		steps = append(steps, FadeStep{Delay: delay, Volume: current})
		delay += FadeStepInterval
	}

	return append(steps, FadeStep{Delay: delay, Volume: to})
}

func clampVolume(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}

func roundVolume(v float64) float64 {
	return math.Round(v*10) / 10
}
