/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math"
	"math/rand/v2"
)

// EvasionConfig holds the geometry and escalation steps of the "No" button.
type EvasionConfig struct {
	ControlWidth  float64
	ControlHeight float64

	AffirmStep float64
	AffirmMax  float64

	NegativeStep float64
	NegativeMin  float64
}

func defaultEvasionConfig() EvasionConfig {
	return EvasionConfig{
		ControlWidth:  120,
		ControlHeight: 60,
		AffirmStep:    0.25,
		AffirmMax:     3,
		NegativeStep:  0.08,
		NegativeMin:   0.4,
	}
}

// Bounds is the viewport size reported by the page.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EvasionState is what the page needs to draw both buttons. A nil Position
// means the "No" button is still docked beside "Yes".
type EvasionState struct {
	AffirmScale   float64
	NegativeScale float64
	Position      *Position
}

func (s EvasionState) Docked() bool {
	return s.Position == nil
}

// Evasion escalates on every trigger: "Yes" grows, "No" shrinks and jumps.
// Both scales saturate and stay there, so "No" is never fully disabled.
// One Evasion lives for one showing of the question screen.
type Evasion struct {
	cfg EvasionConfig
	rng *rand.Rand

	affirmScale   float64
	negativeScale float64
	position      *Position
}

func newEvasion(cfg EvasionConfig, rng *rand.Rand) *Evasion {
	return &Evasion{
		cfg:           cfg,
		rng:           rng,
		affirmScale:   1,
		negativeScale: 1,
	}
}

func (e *Evasion) State() EvasionState {
	s := EvasionState{
		AffirmScale:   e.affirmScale,
		NegativeScale: e.negativeScale,
	}

	if e.position != nil {
		p := *e.position
		s.Position = &p
	}

	return s
}

// Trigger relocates the "No" button uniformly within the viewport, with no
// regard for where it was before, and steps both scales toward their bounds.
func (e *Evasion) Trigger(b Bounds) EvasionState {
	maxX := math.Max(0, b.Width-e.cfg.ControlWidth)
	maxY := math.Max(0, b.Height-e.cfg.ControlHeight)

	e.position = &Position{
		X: e.rng.Float64() * maxX,
		Y: e.rng.Float64() * maxY,
	}

	e.affirmScale = math.Min(e.affirmScale+e.cfg.AffirmStep, e.cfg.AffirmMax)
	e.negativeScale = math.Max(e.negativeScale-e.cfg.NegativeStep, e.cfg.NegativeMin)

	return e.State()
}
