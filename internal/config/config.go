// Package config loads and validates optimization setups from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/optim"
)

const (
	DefaultIntegrator = "rk4"
	DefaultDataDir    = ".dynopt"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Name         string             `yaml:"name" validate:"required"`
	Model        string             `yaml:"model" validate:"required"`
	System       map[string]float64 `yaml:"system,omitempty"`
	Integrator   string             `yaml:"integrator" validate:"omitempty,oneof=euler rk4 rk45 verlet"`
	Controller   ControllerConfig   `yaml:"controller"`
	Simulation   dynamo.Config      `yaml:"simulation"`
	InitialState []float64          `yaml:"initial_state"`
	Events       []EventConfig      `yaml:"events,omitempty" validate:"dive"`
	Parameters   []ParameterConfig  `yaml:"parameters" validate:"dive"`
	Objectives   []ObjectiveConfig  `yaml:"objectives" validate:"required,min=1,dive"`
	Optimizer    OptimizerConfig    `yaml:"optimizer"`
	// FailurePenalty, when set, replaces the objective of a simulation that
	// went unstable instead of failing the run.
	FailurePenalty *float64  `yaml:"failure_penalty,omitempty"`
	Log            LogConfig `yaml:"log"`
	DataDir        string    `yaml:"data_dir"`
}

type ControllerConfig struct {
	Type     string             `yaml:"type" validate:"omitempty,oneof=none pid lqr"`
	Settings map[string]float64 `yaml:"settings,omitempty"`
}

type EventConfig struct {
	Name      string  `yaml:"name" validate:"required"`
	Index     int     `yaml:"index" validate:"min=0"`
	Value     float64 `yaml:"value"`
	Direction string  `yaml:"direction,omitempty" validate:"omitempty,oneof=falling rising either any"`
}

// ParameterConfig declares one optimizable parameter. Nil physical limits
// are unbounded; nil optimization limits fall back to the physical ones.
type ParameterConfig struct {
	Name     string   `yaml:"name" validate:"required"`
	Kind     string   `yaml:"kind" validate:"required,oneof=initial_state launch_angle launch_speed system controller"`
	Default  float64  `yaml:"default"`
	Lower    *float64 `yaml:"lower,omitempty"`
	Upper    *float64 `yaml:"upper,omitempty"`
	LowerOpt *float64 `yaml:"lower_opt,omitempty"`
	UpperOpt *float64 `yaml:"upper_opt,omitempty"`

	Index     int     `yaml:"index,omitempty" validate:"min=0"`
	Key       string  `yaml:"key,omitempty" validate:"required_if=Kind system,required_if=Kind controller"`
	Speed     float64 `yaml:"speed,omitempty"`
	Angle     float64 `yaml:"angle,omitempty"`
	XVelIndex int     `yaml:"x_vel_index,omitempty" validate:"min=0"`
	YVelIndex int     `yaml:"y_vel_index,omitempty" validate:"min=0"`
}

type ObjectiveConfig struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=final maximum minimum integral duration energy_drift control_effort parameter"`
	// Weight defaults to 1 when omitted.
	Weight    *float64 `yaml:"weight,omitempty"`
	Sense     string   `yaml:"sense,omitempty" validate:"omitempty,oneof=min max minimize maximize"`
	Index     int      `yaml:"index,omitempty" validate:"min=0"`
	Squared   bool     `yaml:"squared,omitempty"`
	Target    float64  `yaml:"target,omitempty"`
	Parameter string   `yaml:"parameter,omitempty" validate:"required_if=Kind parameter"`
}

type OptimizerConfig struct {
	// Solver is "gradient" (default) or "grid".
	Solver         string        `yaml:"solver" validate:"omitempty,oneof=gradient grid"`
	Tolerance      float64       `yaml:"tolerance" validate:"gt=0"`
	Method         string        `yaml:"method" validate:"omitempty,oneof=bfgs lbfgs cg neldermead"`
	Formula        string        `yaml:"formula" validate:"omitempty,oneof=central forward backward"`
	Step           float64       `yaml:"step,omitempty" validate:"min=0"`
	MaxEvaluations int           `yaml:"max_evaluations,omitempty" validate:"min=0"`
	MaxIterations  int           `yaml:"max_iterations,omitempty" validate:"min=0"`
	Runtime        time.Duration `yaml:"runtime,omitempty" validate:"min=0s"`
	GridPoints     int           `yaml:"grid_points,omitempty" validate:"min=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Settings converts the optimizer section to solver settings.
func (o OptimizerConfig) Settings() optim.Settings {
	return optim.Settings{
		Tolerance:      o.Tolerance,
		Method:         o.Method,
		Formula:        o.Formula,
		Step:           o.Step,
		MaxEvaluations: o.MaxEvaluations,
		MaxIterations:  o.MaxIterations,
		Runtime:        o.Runtime,
	}
}

func DefaultOptimizer() OptimizerConfig {
	s := optim.DefaultSettings()
	return OptimizerConfig{
		Solver:         "gradient",
		Tolerance:      s.Tolerance,
		Method:         s.Method,
		Formula:        s.Formula,
		MaxEvaluations: s.MaxEvaluations,
		MaxIterations:  s.MaxIterations,
		GridPoints:     21,
	}
}

// DefaultConfig holds the fields a setup file may leave out. It is not a
// valid setup on its own: it has no model, parameters or objectives.
func DefaultConfig() *Config {
	return &Config{
		Integrator: DefaultIntegrator,
		Controller: ControllerConfig{Type: "none"},
		Simulation: dynamo.DefaultConfig(),
		Optimizer:  DefaultOptimizer(),
		Log:        LogConfig{Level: "info", Format: "text"},
		DataDir:    DefaultDataDir,
	}
}

// Parse decodes YAML on top of DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Limits resolves the physical and optimization bounds of a parameter.
func (p ParameterConfig) Limits() (physical, search [2]float64) {
	physical = [2]float64{negInf, posInf}
	if p.Lower != nil {
		physical[0] = *p.Lower
	}
	if p.Upper != nil {
		physical[1] = *p.Upper
	}
	search = physical
	if p.LowerOpt != nil {
		search[0] = *p.LowerOpt
	}
	if p.UpperOpt != nil {
		search[1] = *p.UpperOpt
	}
	return physical, search
}

func (o ObjectiveConfig) WeightOrDefault() float64 {
	if o.Weight == nil {
		return 1
	}
	return *o.Weight
}

// Float returns a pointer to v, for building configs in code.
func Float(v float64) *float64 { return &v }
