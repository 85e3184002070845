package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// Validate runs the struct tag rules and then the cross-field checks the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalid, v.Namespace(), v.Tag(), v.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("%w: simulation: %v", ErrInvalid, err)
	}

	names := make(map[string]struct{}, len(c.Parameters))
	for _, p := range c.Parameters {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalid, p.Name)
		}
		names[p.Name] = struct{}{}

		physical, search := p.Limits()
		switch {
		case physical[0] > physical[1]:
			return fmt.Errorf("%w: parameter %q: lower %g > upper %g", ErrInvalid, p.Name, physical[0], physical[1])
		case search[0] > search[1]:
			return fmt.Errorf("%w: parameter %q: lower_opt %g > upper_opt %g", ErrInvalid, p.Name, search[0], search[1])
		case search[0] < physical[0] || search[1] > physical[1]:
			return fmt.Errorf("%w: parameter %q: optimization limits exceed physical limits", ErrInvalid, p.Name)
		case p.Default < physical[0] || p.Default > physical[1]:
			return fmt.Errorf("%w: parameter %q: default %g outside physical limits", ErrInvalid, p.Name, p.Default)
		}
	}

	for _, o := range c.Objectives {
		if w := o.WeightOrDefault(); math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: objective %q: weight must be finite", ErrInvalid, o.Name)
		}
		if o.Kind == "parameter" {
			if _, ok := names[o.Parameter]; !ok {
				return fmt.Errorf("%w: objective %q refers to unknown parameter %q", ErrInvalid, o.Name, o.Parameter)
			}
		}
	}
	return nil
}
