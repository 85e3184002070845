package config

import (
	"github.com/caarlos0/env/v11"
)

// Overrides are the settings that may come from the environment. Unset
// variables leave the file values alone.
type Overrides struct {
	Tolerance      *float64 `env:"DYNOPT_TOLERANCE"`
	Method         string   `env:"DYNOPT_METHOD"`
	MaxEvaluations *int     `env:"DYNOPT_MAX_EVALUATIONS"`
	LogLevel       string   `env:"DYNOPT_LOG_LEVEL"`
	LogFormat      string   `env:"DYNOPT_LOG_FORMAT"`
	DataDir        string   `env:"DYNOPT_DATA_DIR"`
}

func LoadOverrides() (Overrides, error) {
	var o Overrides
	err := env.Parse(&o)
	return o, err
}

// LoadOverridesFrom reads overrides from the given variables instead of the
// process environment.
func LoadOverridesFrom(vars map[string]string) (Overrides, error) {
	var o Overrides
	err := env.ParseWithOptions(&o, env.Options{Environment: vars})
	return o, err
}

func (o Overrides) Apply(c *Config) {
	if o.Tolerance != nil {
		c.Optimizer.Tolerance = *o.Tolerance
	}
	if o.Method != "" {
		c.Optimizer.Method = o.Method
	}
	if o.MaxEvaluations != nil {
		c.Optimizer.MaxEvaluations = *o.MaxEvaluations
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
}
