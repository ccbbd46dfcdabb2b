/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"strings"
)

// Step is one of the three screens of the card. Steps only ever move forward.
type Step int

const (
	StepEntry Step = iota + 1
	StepQuestion
	StepCelebration
)

func (s Step) String() string {
	switch s {
	case StepEntry:
		return "entry"
	case StepQuestion:
		return "question"
	case StepCelebration:
		return "celebration"
	default:
		return "unknown"
	}
}

const nameRejectedMessage = "WHO ARE YOU WTF ??? 😤 This is reserved for someone special! 💕"

var (
	ErrNameRejected = errors.New("name rejected")
	ErrWrongStep    = errors.New("action not valid for current step")
)

// NameRejectedError carries the message shown under the name input.
type NameRejectedError struct {
	Message string
}

func (e *NameRejectedError) Error() string {
	return ErrNameRejected.Error() + ": " + e.Message
}

func (e *NameRejectedError) Unwrap() error {
	return ErrNameRejected
}

// Flow is the session state of a single page visit.
type Flow struct {
	accepted AllowList

	step        Step
	displayName string
	imageRef    string
}

func newFlow(accepted AllowList) *Flow {
	return &Flow{
		accepted: accepted,
		step:     StepEntry,
	}
}

func (f *Flow) Step() Step {
	return f.step
}

func (f *Flow) DisplayName() string {
	return f.displayName
}

func (f *Flow) ImageRef() string {
	return f.imageRef
}

// SubmitName commits the trimmed name and image and advances to the
// question screen. A name outside the accepted set leaves the flow untouched.
func (f *Flow) SubmitName(raw, image string) error {
	if f.step != StepEntry {
		return ErrWrongStep
	}

	if !f.accepted.Accepts(raw) {
		return &NameRejectedError{Message: nameRejectedMessage}
	}

	f.displayName = strings.TrimSpace(raw)
	f.imageRef = image
	f.step = StepQuestion

	return nil
}

// ConfirmAffirmative moves from the question screen to the celebration.
// Celebration has no further transition.
func (f *Flow) ConfirmAffirmative() error {
	if f.step != StepQuestion {
		return ErrWrongStep
	}

	f.step = StepCelebration

	return nil
}
