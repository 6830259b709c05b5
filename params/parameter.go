package params

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"jjobs-core/teleop/control"
	"jjobs-core/utils"
)

const (
	// EnvParamDir overrides the parameter directory.
	EnvParamDir = "JJOBS_PARAM_DIR"
	// DefaultDir is used when neither flag nor environment name a directory.
	DefaultDir = "config/params"
)

// Parameter is the full, immutable parameter set of one vehicle.
type Parameter struct {
	dir     string
	local   *Local
	machine Machine
	linear  control.RampConfig
	angular control.RampConfig
}

// Load reads local parameters, then the machine parameters of model.
func Load(dir, model string, log *utils.Logger) (*Parameter, error) {
	defer utils.ExecTime(log, "load parameters")()

	log.Info("loading local parameters from %s", dir)
	local, err := LoadLocal(dir)
	if err != nil {
		log.Error("loading local parameters failed: %v", err)
		return nil, err
	}

	tol := local.Variables().Tolerance
	log.Info("loading machine parameters (model=%s)", model)
	machine, err := LoadMachine(dir, model, tol)
	if err != nil {
		log.Error("loading machine parameters failed: %v", err)
		return nil, err
	}

	// Validated by LoadMachine.
	linear, _ := machine.Linear.Ramp(tol)
	angular, _ := machine.Angular.Ramp(tol)

	return &Parameter{
		dir:     dir,
		local:   local,
		machine: *machine,
		linear:  linear,
		angular: angular,
	}, nil
}

func (p *Parameter) Dir() string      { return p.dir }
func (p *Parameter) Local() *Local    { return p.local }
func (p *Parameter) Machine() Machine { return p.machine }

func (p *Parameter) LinearRamp() control.RampConfig  { return p.linear }
func (p *Parameter) AngularRamp() control.RampConfig { return p.angular }

// Snapshot is the YAML-friendly dump used by the params command.
type Snapshot struct {
	Dir        string     `yaml:"dir"`
	Global     Global     `yaml:"global"`
	Interfaces Interfaces `yaml:"interfaces"`
	Variables  Variables  `yaml:"variables"`
	Bag        Bag        `yaml:"bag"`
	Machine    Machine    `yaml:"machine"`
}

func (p *Parameter) Snapshot() Snapshot {
	return Snapshot{
		Dir:        p.dir,
		Global:     p.local.Global(),
		Interfaces: p.local.Interfaces(),
		Variables:  p.local.Variables(),
		Bag:        p.local.Bag(),
		Machine:    p.machine,
	}
}

// LoadEnvFile merges KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ResolveDir picks the parameter directory: flag value, then $JJOBS_PARAM_DIR,
// then DefaultDir.
func ResolveDir(flagValue string) string {
	if d := strings.TrimSpace(flagValue); d != "" {
		return d
	}
	if d := strings.TrimSpace(os.Getenv(EnvParamDir)); d != "" {
		return d
	}
	return DefaultDir
}
