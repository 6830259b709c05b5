package control

import "math"

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// BoolToFloat converts bool to float64 (for CAN encoding)
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// Command is the per-tick chassis command produced by the teleop loop.
type Command struct {
	LinearMPS  float64
	AngularRPS float64
	Correction float64 // feedback correction already folded into LinearMPS
	Enable     bool
}

// IsZero reports whether both axes are exactly at rest.
func (c Command) IsZero() bool {
	return c.LinearMPS == 0 && c.AngularRPS == 0
}

// AutoDecelStep returns the step to use on an Idle tick. Above threshold the
// decay is slowed by ratio; close to rest the full step finishes the stop.
// The step never exceeds |value|, so the decay lands on exactly zero.
func AutoDecelStep(value float64, cfg RampConfig, threshold, ratio float64) float64 {
	step := cfg.Step
	if ratio > 0 && ratio <= 1 && math.Abs(value) > threshold {
		step *= ratio
	}
	return math.Min(step, math.Abs(value))
}
