package control

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Intent is the discrete operator signal driving a ramp, e.g. a held key
// or the sign of a digital joystick axis.
type Intent int

const (
	IntentIdle Intent = iota
	IntentIncrease
	IntentDecrease
)

func (i Intent) String() string {
	switch i {
	case IntentIdle:
		return "idle"
	case IntentIncrease:
		return "increase"
	case IntentDecrease:
		return "decrease"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

var ErrInvalidIntent = errors.New("unknown intent")

// ParseIntent maps the textual form used in scenario files.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "idle", "0":
		return IntentIdle, nil
	case "increase", "inc", "+", "1":
		return IntentIncrease, nil
	case "decrease", "dec", "-", "-1":
		return IntentDecrease, nil
	default:
		return IntentIdle, fmt.Errorf("%w %q", ErrInvalidIntent, s)
	}
}

// IntentFromSign maps the 1/0/-1 status convention of joystick frames.
func IntentFromSign(sign int) Intent {
	switch {
	case sign > 0:
		return IntentIncrease
	case sign < 0:
		return IntentDecrease
	default:
		return IntentIdle
	}
}

// ErrInvalidRampConfig is returned by NewRampConfig for out-of-range constants.
var ErrInvalidRampConfig = errors.New("invalid ramp config")

// RampConfig holds the tuning constants of one ramped axis.
type RampConfig struct {
	Step          float64 // per-tick increment, > 0
	MaxMagnitude  float64 // saturation bound, > 0
	ZeroTolerance float64 // snap-to-zero band, 0 <= tol < MaxMagnitude
}

// NewRampConfig validates the constants so Step never sees a malformed config.
func NewRampConfig(step, maxMagnitude, zeroTolerance float64) (RampConfig, error) {
	cfg := RampConfig{Step: step, MaxMagnitude: maxMagnitude, ZeroTolerance: zeroTolerance}
	if err := cfg.Validate(); err != nil {
		return RampConfig{}, err
	}
	return cfg, nil
}

func (c RampConfig) Validate() error {
	for _, v := range []float64{c.Step, c.MaxMagnitude, c.ZeroTolerance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %+v", ErrInvalidRampConfig, c)
		}
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step must be > 0, got %g", ErrInvalidRampConfig, c.Step)
	}
	if c.MaxMagnitude <= 0 {
		return fmt.Errorf("%w: max magnitude must be > 0, got %g", ErrInvalidRampConfig, c.MaxMagnitude)
	}
	if c.ZeroTolerance < 0 || c.ZeroTolerance >= c.MaxMagnitude {
		return fmt.Errorf("%w: zero tolerance must be in [0, %g), got %g",
			ErrInvalidRampConfig, c.MaxMagnitude, c.ZeroTolerance)
	}
	return nil
}

// WithStep returns a copy using a different per-tick step.
func (c RampConfig) WithStep(step float64) RampConfig {
	c.Step = step
	return c
}

// Step computes the next commanded value of a ramped axis.
//
// Step is a per-tick magnitude: the physical ramp rate is Step times the
// caller's tick frequency, so callers must invoke it at a fixed rate.
// Idle pulls the value toward zero and snaps it to exactly 0 once it is
// inside the tolerance band. The result never exceeds MaxMagnitude.
func Step(previous float64, intent Intent, cfg RampConfig) float64 {
	if intent == IntentIdle && math.Abs(previous) < cfg.ZeroTolerance {
		return 0.0
	}

	// Inputs are not range-checked; both bounds apply to the output.
	if intent == IntentIncrease || (intent == IntentIdle && previous < -cfg.ZeroTolerance) {
		return ClampFloat(previous+cfg.Step, -cfg.MaxMagnitude, cfg.MaxMagnitude)
	}
	if intent == IntentDecrease || (intent == IntentIdle && previous > cfg.ZeroTolerance) {
		return ClampFloat(previous-cfg.Step, -cfg.MaxMagnitude, cfg.MaxMagnitude)
	}
	return previous
}
