package control

import "math"

// PIDConfig holds the speed feedback loop gains
type PIDConfig struct {
	Kp            float64 `yaml:"kp" json:"kp"`
	Ki            float64 `yaml:"ki" json:"ki"`
	Kd            float64 `yaml:"kd" json:"kd"`
	IntegralLimit float64 `yaml:"integral_limit" json:"integral_limit"`
	MaxCorrection float64 `yaml:"max_correction" json:"max_correction"`
}

// PIDController corrects the commanded speed from measured chassis speed.
// Errors inside the tolerance band neither correct nor integrate.
type PIDController struct {
	cfg       PIDConfig
	tolerance float64

	// State
	integral    float64
	prevError   float64
	initialized bool
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig, tolerance float64) *PIDController {
	return &PIDController{
		cfg:       cfg,
		tolerance: math.Abs(tolerance),
	}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.initialized = false
}

// Update returns the speed correction for the given target and measurement.
func (pid *PIDController) Update(target, measured, dt float64) float64 {
	error := target - measured

	if math.Abs(error) < pid.tolerance {
		pid.prevError = error
		pid.initialized = true
		return 0.0
	}

	// Reset integral when crossing setpoint
	if (pid.prevError > 0 && error < 0) || (pid.prevError < 0 && error > 0) {
		pid.integral = 0.0
	}

	p := pid.cfg.Kp * error

	pid.integral += error * dt
	if pid.cfg.IntegralLimit > 0 {
		pid.integral = ClampFloat(pid.integral, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)
	}
	i := pid.cfg.Ki * pid.integral

	// Derivative term (using error derivative to avoid derivative kick)
	var d float64
	if dt > 0 && pid.initialized {
		d = pid.cfg.Kd * (error - pid.prevError) / dt
	}

	correction := p + i + d
	if pid.cfg.MaxCorrection > 0 {
		correction = ClampFloat(correction, -pid.cfg.MaxCorrection, pid.cfg.MaxCorrection)
	}

	pid.prevError = error
	pid.initialized = true
	return correction
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}
