package params

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"jjobs-core/teleop/control"
	"jjobs-core/utils"
)

// DefaultModel is the machine type loaded when none is given.
const DefaultModel = "jcar3"

// MaxControlHz bounds control_hz so the tick period stays a usable duration.
const MaxControlHz = 1000

// Axis bounds one ramped velocity axis.
type Axis struct {
	Step float64 `yaml:"step"` // per control tick
	Max  float64 `yaml:"max"`
}

// Machine holds the parameters of one machine type.
type Machine struct {
	Model     string            `yaml:"model"`
	ControlHz float64           `yaml:"control_hz"`
	Linear    Axis              `yaml:"linear"`  // m/s
	Angular   Axis              `yaml:"angular"` // rad/s
	Feedback  control.PIDConfig `yaml:"feedback"`
}

func defaultMachine(model string) Machine {
	return Machine{
		Model:     model,
		ControlHz: 20,
		Linear:    Axis{Step: 0.05, Max: 1.0},
		Angular:   Axis{Step: 0.1, Max: 1.0},
		Feedback: control.PIDConfig{
			Kp:            0.8,
			Ki:            0.2,
			Kd:            0.0,
			IntegralLimit: 0.5,
			MaxCorrection: 0.2,
		},
	}
}

// LoadMachine reads <dir>/<model>.yaml over the built-in defaults and checks
// that both axes form valid ramps with the given zero tolerance.
func LoadMachine(dir, model string, tolerance float64) (*Machine, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if strings.ContainsAny(model, `/\`) {
		return nil, fmt.Errorf("%w: machine model %q must be a plain name", ErrInvalidParams, model)
	}

	m := defaultMachine(model)
	if err := utils.LoadYAML(filepath.Join(dir, model+".yaml"), &m); err != nil {
		return nil, fmt.Errorf("load machine params: %w", err)
	}
	if err := m.Validate(tolerance); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m Machine) Validate(tolerance float64) error {
	if !(m.ControlHz > 0 && m.ControlHz <= MaxControlHz) {
		return fmt.Errorf("%w: control_hz must be in (0, %d], got %g", ErrInvalidParams, MaxControlHz, m.ControlHz)
	}
	if _, err := m.Linear.Ramp(tolerance); err != nil {
		return fmt.Errorf("%w: linear: %w", ErrInvalidParams, err)
	}
	if _, err := m.Angular.Ramp(tolerance); err != nil {
		return fmt.Errorf("%w: angular: %w", ErrInvalidParams, err)
	}
	fb := m.Feedback
	for _, v := range []float64{fb.Kp, fb.Ki, fb.Kd, fb.IntegralLimit, fb.MaxCorrection} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: feedback gains must be finite", ErrInvalidParams)
		}
	}
	if fb.MaxCorrection < 0 || fb.IntegralLimit < 0 {
		return fmt.Errorf("%w: feedback limits must be >= 0", ErrInvalidParams)
	}
	return nil
}

func (a Axis) Ramp(tolerance float64) (control.RampConfig, error) {
	return control.NewRampConfig(a.Step, a.Max, tolerance)
}
