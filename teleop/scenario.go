package main

import (
	"encoding/json"
	"fmt"
	"os"

	"jjobs-core/teleop/control"
)

// Scenario is a scripted sequence of operator intents, used in place of a
// joystick for bench runs.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Segments []ScenarioSegment `json:"segments"`
}

// ScenarioMeta contains scenario metadata
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ScenarioTiming defines timing parameters
type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
}

// ScenarioSegment holds the intents for [T0, T1); T1 < 0 runs to the end.
type ScenarioSegment struct {
	T0      float64 `json:"t0"`
	T1      float64 `json:"t1"`
	Linear  string  `json:"linear,omitempty"`
	Angular string  `json:"angular,omitempty"`
	Comment string  `json:"comment,omitempty"`

	linear  control.Intent
	angular control.Intent
}

// LoadScenario loads a scenario from JSON file
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := scen.prepare(); err != nil {
		return Scenario{}, err
	}
	return scen, nil
}

func (s *Scenario) prepare() error {
	if s.Timing.DurationS <= 0 {
		return fmt.Errorf("invalid duration_s: %f", s.Timing.DurationS)
	}
	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.T1 >= 0 && seg.T1 <= seg.T0 {
			return fmt.Errorf("segment %d: t1 %.3f must be after t0 %.3f", i, seg.T1, seg.T0)
		}
		var err error
		if seg.linear, err = control.ParseIntent(seg.Linear); err != nil {
			return fmt.Errorf("segment %d linear: %w", i, err)
		}
		if seg.angular, err = control.ParseIntent(seg.Angular); err != nil {
			return fmt.Errorf("segment %d angular: %w", i, err)
		}
	}
	return nil
}

// EvalIntents returns the intents active at time t (seconds since start);
// outside every segment both axes are idle.
func (s *Scenario) EvalIntents(t float64) (linear, angular control.Intent) {
	for _, seg := range s.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = s.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			return seg.linear, seg.angular
		}
	}
	return control.IntentIdle, control.IntentIdle
}
