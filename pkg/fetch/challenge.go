package fetch

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ChallengeState tracks bot challenge handling for one fetch.
type ChallengeState int

const (
	// StateUnchecked means the content showed up without probing.
	StateUnchecked ChallengeState = iota
	StateProbing
	StateNoChallenge
	StateChallengeDetected
	StateControlLocated
	StateBypassed
	StateUnresolved
)

func (s ChallengeState) String() string {
	switch s {
	case StateUnchecked:
		return "unchecked"
	case StateProbing:
		return "probing"
	case StateNoChallenge:
		return "no_challenge"
	case StateChallengeDetected:
		return "challenge_detected"
	case StateControlLocated:
		return "control_located"
	case StateBypassed:
		return "bypassed"
	case StateUnresolved:
		return "unresolved"
	}
	return "unknown"
}

// Terminal reports whether the state machine stops at s.
func (s ChallengeState) Terminal() bool {
	return s == StateNoChallenge || s == StateBypassed || s == StateUnresolved
}

// resolver walks the challenge states for a page whose content did not
// show up in time.
type resolver struct {
	page     Page
	opts     Options
	log      logrus.FieldLogger
	rechecked bool
}

func newResolver(page Page, opts Options, log logrus.FieldLogger) *resolver {
	return &resolver{page: page, opts: opts, log: log}
}

// step performs the action of state s and returns the next state.
func (r *resolver) step(ctx context.Context, s ChallengeState) ChallengeState {
	switch s {
	case StateProbing:
		if err := r.page.Pause(ctx, r.opts.ProbeDelay); err != nil {
			return StateUnresolved
		}
		present, err := r.page.ChallengePresent(ctx)
		if err != nil {
			r.log.WithError(err).Debug("Challenge check failed")
			return StateUnresolved
		}
		if !present {
			return StateNoChallenge
		}
		return StateChallengeDetected

	case StateChallengeDetected:
		found, err := r.page.LocateControl(ctx)
		if err != nil {
			r.log.WithError(err).Debug("Locating challenge control failed")
			return StateUnresolved
		}
		if found {
			return StateControlLocated
		}
		if r.rechecked {
			return StateUnresolved
		}
		// The widget renders late; give it one longer wait.
		r.rechecked = true
		if err := r.page.Pause(ctx, r.opts.ControlWait); err != nil {
			return StateUnresolved
		}
		return StateChallengeDetected

	case StateControlLocated:
		if err := r.page.ActivateControl(ctx); err != nil {
			r.log.WithError(err).Debug("Activating challenge control failed")
			return StateUnresolved
		}
		return StateBypassed
	}
	return s
}

// run drives the machine from StateProbing to a terminal state.
func (r *resolver) run(ctx context.Context) ChallengeState {
	s := StateProbing
	for !s.Terminal() {
		next := r.step(ctx, s)
		r.log.WithFields(logrus.Fields{"from": s, "to": next}).Debug("Challenge state")
		s = next
	}
	return s
}
