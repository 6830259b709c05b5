package params

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"jjobs-core/utils"
)

// LocalFile is the site-local parameter file name inside the parameter directory.
const LocalFile = "local.yaml"

// ErrInvalidParams wraps every validation failure of a parameter file.
var ErrInvalidParams = errors.New("invalid parameters")

type Global struct {
	Debug          bool `yaml:"debug"`
	LogLevel       int  `yaml:"log_level"`
	EnableFeedback bool `yaml:"enable_feedback"` // speed feedback loop
}

// Interfaces are topic names of the surrounding robot stack.
type Interfaces struct {
	JCar3Path            string `yaml:"jcar3_path"`
	Joystick             string `yaml:"joystick"`
	Joy3Controller       string `yaml:"joy3_controller"`
	CarlyKeyboard        string `yaml:"carly_keyboard"`
	ChassisSpeed         string `yaml:"chassis_speed"`
	CarrierSpeed         string `yaml:"carrier_speed"`
	ChassisSpeedFeedback string `yaml:"chassis_speed_feedback"`
	RunModule            string `yaml:"run_module"`
	Rotation             string `yaml:"rotation"`
	SetRotate            string `yaml:"set_rotate"`
}

type Variables struct {
	Tolerance                      float64 `yaml:"tolerance"`
	AutomaticDecelerationThreshold float64 `yaml:"automatic_deceleration_threshold"`
	AutomaticDecelerationRatio     float64 `yaml:"automatic_deceleration_ratio"`
	FeedbackToleranceVelocity      float64 `yaml:"feedback_tolerance_velocity"`
	IdleTime                       int     `yaml:"idle_time"` // seconds
}

// Bag locates recorded bags and where cut excerpts go.
type Bag struct {
	Dir             string  `yaml:"bag_dir"`
	DurationMin     float64 `yaml:"bag_duration"`
	TimeRangeMin    float64 `yaml:"time_range"`
	FilteredDir     string  `yaml:"filtered_dir"`
	FilteredBagName string  `yaml:"filtered_bag_name"`
}

type localFile struct {
	Global     Global     `yaml:"global"`
	Interfaces Interfaces `yaml:"interfaces"`
	Variables  Variables  `yaml:"variables"`
	Bag        Bag        `yaml:"bag"`
}

// Local is the read-only view of local.yaml.
type Local struct {
	g Global
	i Interfaces
	v Variables
	b Bag
}

func defaultLocal() localFile {
	return localFile{
		Global: Global{
			Debug:          false,
			LogLevel:       1,
			EnableFeedback: true,
		},
		Interfaces: Interfaces{
			JCar3Path:            "/j3/jjobs/control",
			Joystick:             "/jzhw/joy",
			Joy3Controller:       "/jjobs/joy3/control",
			CarlyKeyboard:        "/carly/keyboard",
			ChassisSpeed:         "/jzhw/joy_ctrl",
			CarrierSpeed:         "/emb/carrier/speed/control",
			ChassisSpeedFeedback: "/emma_odom_vel",
			RunModule:            "/jjobs/module/control",
			Rotation:             "/jzhw/rotation",
			SetRotate:            "/set_rotate_angle",
		},
		Variables: Variables{
			Tolerance:                      1e-5,
			AutomaticDecelerationThreshold: 0.01,
			AutomaticDecelerationRatio:     0.5,
			FeedbackToleranceVelocity:      0.05,
			IdleTime:                       1800,
		},
		Bag: Bag{
			Dir:             "~/bags",
			DurationMin:     5,
			TimeRangeMin:    2,
			FilteredDir:     "~/bags/filtered",
			FilteredBagName: "filtered.bag",
		},
	}
}

// LoadLocal reads <dir>/local.yaml over the built-in defaults.
func LoadLocal(dir string) (*Local, error) {
	lf := defaultLocal()
	if err := utils.LoadYAML(filepath.Join(dir, LocalFile), &lf); err != nil {
		return nil, fmt.Errorf("load local params: %w", err)
	}
	if err := lf.validate(); err != nil {
		return nil, err
	}
	return &Local{g: lf.Global, i: lf.Interfaces, v: lf.Variables, b: lf.Bag}, nil
}

func (lf *localFile) validate() error {
	v := lf.Variables
	if !(v.Tolerance >= 0) || math.IsInf(v.Tolerance, 0) {
		return fmt.Errorf("%w: variables.tolerance must be >= 0, got %g", ErrInvalidParams, v.Tolerance)
	}
	if !(v.AutomaticDecelerationRatio > 0 && v.AutomaticDecelerationRatio <= 1) {
		return fmt.Errorf("%w: variables.automatic_deceleration_ratio must be in (0, 1], got %g",
			ErrInvalidParams, v.AutomaticDecelerationRatio)
	}
	if !(v.AutomaticDecelerationThreshold >= 0) {
		return fmt.Errorf("%w: variables.automatic_deceleration_threshold must be >= 0, got %g",
			ErrInvalidParams, v.AutomaticDecelerationThreshold)
	}
	if !(v.FeedbackToleranceVelocity >= 0) {
		return fmt.Errorf("%w: variables.feedback_tolerance_velocity must be >= 0, got %g",
			ErrInvalidParams, v.FeedbackToleranceVelocity)
	}
	if v.IdleTime < 0 {
		return fmt.Errorf("%w: variables.idle_time must be >= 0", ErrInvalidParams)
	}
	if !(lf.Bag.DurationMin > 0) || !(lf.Bag.TimeRangeMin >= 0) {
		return fmt.Errorf("%w: bag.bag_duration must be > 0 and bag.time_range >= 0", ErrInvalidParams)
	}
	return nil
}

func (l *Local) Global() Global         { return l.g }
func (l *Local) Interfaces() Interfaces { return l.i }
func (l *Local) Variables() Variables   { return l.v }
func (l *Local) Bag() Bag               { return l.b }

// LogLevel is the configured numeric level, lowered to DEBUG in debug mode.
func (l *Local) LogLevel() utils.LogLevel {
	level := utils.LevelFromInt(l.g.LogLevel)
	if l.g.Debug && level > utils.DEBUG {
		return utils.DEBUG
	}
	return level
}
