package config

import (
	"math"
	"sort"
	"strings"
)

// Presets builds a fresh setup on every call, keyed by model then name.
var Presets = map[string]map[string]func() *Config{
	"projectile": {
		"range":  projectileRange,
		"height": projectileHeight,
	},
	"pendulum": {
		"swing": pendulumSwing,
	},
	"spring_mass": {
		"settle": springMassSettle,
	},
}

func projectileBase(name string) *Config {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Model = "projectile"
	cfg.Simulation.Duration = 10
	cfg.InitialState = []float64{0, 0, 0, 0}
	cfg.Events = []EventConfig{{Name: "hit_ground", Index: 1, Value: 0, Direction: "falling"}}
	return cfg
}

// projectileRange finds the launch angle with the longest flight.
func projectileRange() *Config {
	cfg := projectileBase("projectile/range")
	cfg.Parameters = []ParameterConfig{{
		Name: "angle", Kind: "launch_angle", Default: 30,
		Lower: Float(0), Upper: Float(90),
		Speed: 20, XVelIndex: 2, YVelIndex: 3,
	}}
	cfg.Objectives = []ObjectiveConfig{{Name: "range", Kind: "final", Index: 0, Sense: "maximize"}}
	return cfg
}

func projectileHeight() *Config {
	cfg := projectileBase("projectile/height")
	cfg.Parameters = []ParameterConfig{{
		Name: "angle", Kind: "launch_angle", Default: 80,
		Lower: Float(0), Upper: Float(90), LowerOpt: Float(1),
		Speed: 3, XVelIndex: 2, YVelIndex: 3,
	}}
	cfg.Objectives = []ObjectiveConfig{{Name: "max_height", Kind: "maximum", Index: 1, Sense: "maximize"}}
	return cfg
}

// pendulumSwing tunes a PD controller to raise the pendulum to 45 degrees
// and hold it there cheaply.
func pendulumSwing() *Config {
	cfg := DefaultConfig()
	cfg.Name = "pendulum/swing"
	cfg.Model = "pendulum"
	cfg.Simulation.Duration = 10
	cfg.InitialState = []float64{0, 0}
	cfg.Controller = ControllerConfig{
		Type:     "pid",
		Settings: map[string]float64{"kp": 20, "kd": 2, "target": math.Pi / 4},
	}
	cfg.Parameters = []ParameterConfig{
		{Name: "kp", Kind: "controller", Key: "kp", Default: 20, Lower: Float(0), Upper: Float(100)},
		{Name: "kd", Kind: "controller", Key: "kd", Default: 2, Lower: Float(0), Upper: Float(20)},
	}
	cfg.Objectives = []ObjectiveConfig{
		{Name: "tracking", Kind: "integral", Index: 0, Squared: true, Target: math.Pi / 4},
		{Name: "effort", Kind: "control_effort", Weight: Float(1e-4)},
	}
	return cfg
}

// springMassSettle picks the damping that minimizes the squared-error
// integral of a released spring. The analytic optimum is sqrt(k*m).
func springMassSettle() *Config {
	cfg := DefaultConfig()
	cfg.Name = "spring_mass/settle"
	cfg.Model = "spring_mass"
	cfg.Simulation.Duration = 20
	cfg.InitialState = []float64{1, 0}
	cfg.Parameters = []ParameterConfig{{
		Name: "damping", Kind: "system", Key: "damping0", Default: 0.5,
		Lower: Float(0), Upper: Float(20),
	}}
	cfg.Objectives = []ObjectiveConfig{{Name: "ise", Kind: "integral", Index: 0, Squared: true}}
	return cfg
}

// GetPreset accepts either (model, name) or a single "model/name".
func GetPreset(model, preset string) *Config {
	if preset == "" {
		model, preset, _ = strings.Cut(model, "/")
	}
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	build, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListModels() []string {
	models := make([]string, 0, len(Presets))
	for m := range Presets {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
