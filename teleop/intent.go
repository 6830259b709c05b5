package main

import (
	"time"

	"jjobs-core/teleop/control"
)

// joystickStaleAfter is how long a joystick reading is trusted.
const joystickStaleAfter = 500 * time.Millisecond

// IntentSource yields the operator intents for each control tick. ok is
// false once the source has nothing more to say and the loop should end.
type IntentSource interface {
	Intents(now time.Time) (linear, angular control.Intent, ok bool)
}

// ScenarioSource plays a Scenario from the time of its first tick.
type ScenarioSource struct {
	scen  *Scenario
	start time.Time
}

func NewScenarioSource(scen *Scenario) *ScenarioSource {
	return &ScenarioSource{scen: scen}
}

func (s *ScenarioSource) Intents(now time.Time) (control.Intent, control.Intent, bool) {
	if s.start.IsZero() {
		s.start = now
	}
	t := now.Sub(s.start).Seconds()
	if t > s.scen.Timing.DurationS {
		return control.IntentIdle, control.IntentIdle, false
	}
	lin, ang := s.scen.EvalIntents(t)
	return lin, ang, true
}

// JoystickSource holds the last decoded JOYSTICK_STATE frame. It is updated
// and read from the control loop goroutine only.
type JoystickSource struct {
	linear  control.Intent
	angular control.Intent
	at      time.Time
}

// Update records the axis signs of a joystick frame received at now.
func (j *JoystickSource) Update(values map[string]float64, now time.Time) {
	j.linear = control.IntentFromSign(sign(values["linear_sign"]))
	j.angular = control.IntentFromSign(sign(values["angular_sign"]))
	j.at = now
}

// Intents reports idle on both axes when no fresh frame is available.
func (j *JoystickSource) Intents(now time.Time) (control.Intent, control.Intent, bool) {
	if j.at.IsZero() || now.Sub(j.at) > joystickStaleAfter {
		return control.IntentIdle, control.IntentIdle, true
	}
	return j.linear, j.angular, true
}

func sign(v float64) int {
	switch {
	case v > 0.5:
		return 1
	case v < -0.5:
		return -1
	default:
		return 0
	}
}
