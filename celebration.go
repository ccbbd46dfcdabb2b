/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"
)

var confettiColors = []string{"#e91e63", "#ff4081", "#f48fb1", "#ff80ab", "#ffd54f"}

// Burst is a single call into the page's particle emitter.
type Burst struct {
	OriginX float64  `json:"origin_x"`
	Angle   float64  `json:"angle"`
	Spread  float64  `json:"spread"`
	Colors  []string `json:"colors"`
	Count   int      `json:"count"`
}

// confettiFrame is one frame of the celebration: a burst from each side.
func confettiFrame() []Burst {
	return []Burst{
		{OriginX: 0, Angle: 60, Spread: 55, Colors: confettiColors, Count: 3},
		{OriginX: 1, Angle: 120, Spread: 55, Colors: confettiColors, Count: 3},
	}
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now()
}

func (wallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Emitter receives the bursts of each frame.
type Emitter interface {
	Emit(bursts []Burst)
}

type EmitterFunc func(bursts []Burst)

func (f EmitterFunc) Emit(bursts []Burst) {
	f(bursts)
}

// Celebration fires confetti once per frame until its duration has elapsed.
type Celebration struct {
	clock    Clock
	duration time.Duration
	interval time.Duration
}

func newCelebration(clock Clock, duration, interval time.Duration) *Celebration {
	return &Celebration{
		clock:    clock,
		duration: duration,
		interval: interval,
	}
}

// Run emits the first frame immediately, then keeps going while the clock
// is before the deadline. It returns the number of frames emitted.
func (c *Celebration) Run(ctx context.Context, em Emitter) int {
	end := c.clock.Now().Add(c.duration)
	frames := 0

	for {
		em.Emit(confettiFrame())
		frames++

		if !c.clock.Now().Before(end) {
			return frames
		}

		select {
		case <-ctx.Done():
			return frames
		case <-c.clock.After(c.interval):
		}

		if !c.clock.Now().Before(end) {
			return frames
		}
	}
}
