package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jjobs-core/teleop/control"
)

func TestLoadShippedScenario(t *testing.T) {
	scen, err := LoadScenario(filepath.Join("scenarios", "square_drive.json"))
	require.NoError(t, err)
	assert.NotEmpty(t, scen.Meta.Name)
	assert.Greater(t, scen.Timing.DurationS, 0.0)
	assert.NotEmpty(t, scen.Segments)

	lin, _ := scen.EvalIntents(scen.Timing.DurationS + 1)
	assert.Equal(t, control.IntentIdle, lin)
}

func TestLoadScenarioErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	_, err := LoadScenario(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadScenario(write("broken.json", `{"timing":`))
	assert.Error(t, err)

	_, err = LoadScenario(write("zero.json", `{"timing":{"duration_s":0}}`))
	assert.ErrorContains(t, err, "duration_s")

	_, err = LoadScenario(write("order.json", `{"timing":{"duration_s":5},"segments":[{"t0":2,"t1":1}]}`))
	assert.ErrorContains(t, err, "segment 0")

	_, err = LoadScenario(write("intent.json", `{"timing":{"duration_s":5},"segments":[{"t0":0,"t1":1,"linear":"faster"}]}`))
	assert.ErrorIs(t, err, control.ErrInvalidIntent)
}

func TestEvalIntents(t *testing.T) {
	scen := scenarioOf(t, 10,
		ScenarioSegment{T0: 0, T1: 2, Linear: "increase"},
		ScenarioSegment{T0: 2, T1: 4, Linear: "idle", Angular: "decrease"},
		ScenarioSegment{T0: 6, T1: -1, Linear: "decrease"},
	)

	cases := []struct {
		t       float64
		linear  control.Intent
		angular control.Intent
	}{
		{0, control.IntentIncrease, control.IntentIdle},
		{1.99, control.IntentIncrease, control.IntentIdle},
		{2, control.IntentIdle, control.IntentDecrease},
		{5, control.IntentIdle, control.IntentIdle},
		{9.5, control.IntentDecrease, control.IntentIdle},
		{10, control.IntentIdle, control.IntentIdle},
	}
	for _, c := range cases {
		lin, ang := scen.EvalIntents(c.t)
		assert.Equal(t, c.linear, lin, "linear at t=%.2f", c.t)
		assert.Equal(t, c.angular, ang, "angular at t=%.2f", c.t)
	}
}

func TestScenarioSourceEnds(t *testing.T) {
	src := NewScenarioSource(scenarioOf(t, 1, ScenarioSegment{T0: 0, T1: -1, Linear: "increase"}))
	start := time.Now()

	lin, _, ok := src.Intents(start)
	assert.True(t, ok)
	assert.Equal(t, control.IntentIncrease, lin)

	_, _, ok = src.Intents(start.Add(900 * time.Millisecond))
	assert.True(t, ok)

	lin, _, ok = src.Intents(start.Add(1100 * time.Millisecond))
	assert.False(t, ok)
	assert.Equal(t, control.IntentIdle, lin)
}

func TestJoystickSource(t *testing.T) {
	j := &JoystickSource{}
	now := time.Now()

	lin, ang, ok := j.Intents(now)
	assert.True(t, ok)
	assert.Equal(t, control.IntentIdle, lin)
	assert.Equal(t, control.IntentIdle, ang)

	j.Update(map[string]float64{"linear_sign": 1, "angular_sign": -1}, now)
	lin, ang, _ = j.Intents(now.Add(100 * time.Millisecond))
	assert.Equal(t, control.IntentIncrease, lin)
	assert.Equal(t, control.IntentDecrease, ang)

	lin, ang, ok = j.Intents(now.Add(joystickStaleAfter + time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, control.IntentIdle, lin)
	assert.Equal(t, control.IntentIdle, ang)

	j.Update(map[string]float64{"linear_sign": 0.2}, now)
	lin, _, _ = j.Intents(now)
	assert.Equal(t, control.IntentIdle, lin)
}
