package params

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jjobs-core/teleop/control"
	"jjobs-core/utils"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func testLogger() *utils.Logger {
	return utils.NewLogger(&bytes.Buffer{}, utils.TRACE)
}

func TestLoadShippedParams(t *testing.T) {
	p, err := Load(filepath.Join("..", "config", "params"), "", testLogger())
	require.NoError(t, err)

	assert.Equal(t, "jcar3", p.Machine().Model)
	assert.Equal(t, 20.0, p.Machine().ControlHz)
	assert.Equal(t, "/jzhw/joy_ctrl", p.Local().Interfaces().ChassisSpeed)
	assert.Equal(t, 1800, p.Local().Variables().IdleTime)
	assert.True(t, p.Local().Global().EnableFeedback)
	assert.Equal(t, control.RampConfig{Step: 0.05, MaxMagnitude: 1.2, ZeroTolerance: 1e-5}, p.LinearRamp())
	assert.Equal(t, control.RampConfig{Step: 0.1, MaxMagnitude: 1.0, ZeroTolerance: 1e-5}, p.AngularRamp())
}

func TestLocalDefaultsFillMissingKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, LocalFile, "global:\n  debug: true\n  log_level: 4\nvariables:\n  idle_time: 60\n")

	l, err := LoadLocal(dir)
	require.NoError(t, err)

	assert.True(t, l.Global().Debug)
	assert.True(t, l.Global().EnableFeedback)
	assert.Equal(t, 60, l.Variables().IdleTime)
	assert.Equal(t, 1e-5, l.Variables().Tolerance)
	assert.Equal(t, 0.5, l.Variables().AutomaticDecelerationRatio)
	assert.Equal(t, "/emma_odom_vel", l.Interfaces().ChassisSpeedFeedback)
	assert.Equal(t, "filtered.bag", l.Bag().FilteredBagName)
	assert.Equal(t, utils.DEBUG, l.LogLevel())
}

func TestLocalLogLevel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, LocalFile, "global:\n  log_level: 0\n  debug: true\n")
	l, err := LoadLocal(dir)
	require.NoError(t, err)
	assert.Equal(t, utils.TRACE, l.LogLevel())
}

func TestLoadFailsWithoutFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, "jcar3", testLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, dir, LocalFile, "global: {}\n")
	_, err = Load(dir, "jcar3", testLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, LocalFile, "global: [\n")
	_, err := LoadLocal(dir)
	assert.Error(t, err)
}

func TestLocalValidation(t *testing.T) {
	cases := map[string]string{
		"negative tolerance":  "variables:\n  tolerance: -1\n",
		"zero decel ratio":    "variables:\n  automatic_deceleration_ratio: 0\n",
		"negative idle time":  "variables:\n  idle_time: -5\n",
		"zero bag duration":   "bag:\n  bag_duration: 0\n",
		"nan decel ratio":     "variables:\n  automatic_deceleration_ratio: .nan\n",
		"nan decel threshold": "variables:\n  automatic_deceleration_threshold: .nan\n",
		"nan feedback band":   "variables:\n  feedback_tolerance_velocity: .nan\n",
		"nan tolerance":       "variables:\n  tolerance: .nan\n",
		"nan time range":      "bag:\n  time_range: .nan\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, LocalFile, body)
			_, err := LoadLocal(dir)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestMachineValidation(t *testing.T) {
	cases := map[string]string{
		"zero control rate":   "control_hz: 0\n",
		"zero linear step":    "linear:\n  step: 0\n",
		"tolerance above max": "angular:\n  max: 0.000001\n",
		"negative correction": "feedback:\n  max_correction: -1\n",
		"nan control rate":    "control_hz: .nan\n",
		"huge control rate":   "control_hz: 2000000000\n",
		"nan gain":            "feedback:\n  kp: .nan\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "jcar3.yaml", body)
			_, err := LoadMachine(dir, "jcar3", 1e-5)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	_, err := LoadMachine(t.TempDir(), "../etc/passwd", 1e-5)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestMachineControlRateBound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "jcar3.yaml", "control_hz: 1000\n")
	m, err := LoadMachine(dir, "jcar3", 1e-5)
	require.NoError(t, err)
	assert.Equal(t, float64(MaxControlHz), m.ControlHz)

	writeFile(t, dir, "jcar3.yaml", "control_hz: 1000.5\n")
	_, err = LoadMachine(dir, "jcar3", 1e-5)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestMachineRampErrorsWrapBoth(t *testing.T) {
	err := Machine{ControlHz: 10, Linear: Axis{Step: 0, Max: 1}, Angular: Axis{Step: 1, Max: 1}}.Validate(0)
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.ErrorIs(t, err, control.ErrInvalidRampConfig)
}

func TestSnapshot(t *testing.T) {
	p, err := Load(filepath.Join("..", "config", "params"), DefaultModel, testLogger())
	require.NoError(t, err)
	s := p.Snapshot()
	assert.Equal(t, p.Dir(), s.Dir)
	assert.Equal(t, p.Machine(), s.Machine)
	assert.Equal(t, p.Local().Variables(), s.Variables)
}

func TestResolveDir(t *testing.T) {
	t.Setenv(EnvParamDir, "")
	assert.Equal(t, DefaultDir, ResolveDir(""))

	t.Setenv(EnvParamDir, "/etc/jjobs")
	assert.Equal(t, "/etc/jjobs", ResolveDir("  "))
	assert.Equal(t, "/opt/params", ResolveDir("/opt/params"))
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvParamDir+"=/from/dotenv\n"), 0o644))

	t.Setenv(EnvParamDir, "")
	require.NoError(t, os.Unsetenv(EnvParamDir))
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "/from/dotenv", ResolveDir(""))
}
