package resolve

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Policy tunes conflict resolution and session auto-fill behavior.
type Policy struct {
	// Epsilon is the relative tolerance under which two candidate values
	// count as agreeing.
	Epsilon float64 `yaml:"epsilon"`
	// AbsTolerance is the absolute agreement floor, needed when values sit
	// near zero where a relative test degenerates.
	AbsTolerance float64 `yaml:"abs_tolerance"`
	// MaxPasses bounds the session auto-fill fixpoint loop.
	MaxPasses int `yaml:"max_passes"`
	// WriteBack controls whether cleanly resolved values are written into
	// the field store, unlocking dependent calculations.
	WriteBack bool `yaml:"write_back"`
	// WriteBackVeryLow additionally writes contested values back instead of
	// only queueing them for review.
	WriteBackVeryLow bool `yaml:"write_back_very_low"`
}

// DefaultPolicy returns the policy used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		Epsilon:          1e-9,
		AbsTolerance:     1e-12,
		MaxPasses:        10,
		WriteBack:        true,
		WriteBackVeryLow: false,
	}
}

// LoadPolicy reads resolution policy from a YAML file. Values left unset in
// the file keep their DefaultPolicy values.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, eris.Wrapf(err, "resolve: read policy %s", path)
	}

	// The YAML has a top-level "resolve" key.
	var wrapper struct {
		Resolve struct {
			Epsilon          float64 `yaml:"epsilon"`
			AbsTolerance     float64 `yaml:"abs_tolerance"`
			MaxPasses        int     `yaml:"max_passes"`
			WriteBack        *bool   `yaml:"write_back"`
			WriteBackVeryLow *bool   `yaml:"write_back_very_low"`
		} `yaml:"resolve"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Policy{}, eris.Wrap(err, "resolve: parse policy")
	}

	p := DefaultPolicy()
	in := wrapper.Resolve
	if in.Epsilon > 0 {
		p.Epsilon = in.Epsilon
	}
	if in.AbsTolerance > 0 {
		p.AbsTolerance = in.AbsTolerance
	}
	if in.MaxPasses > 0 {
		p.MaxPasses = in.MaxPasses
	}
	if in.WriteBack != nil {
		p.WriteBack = *in.WriteBack
	}
	if in.WriteBackVeryLow != nil {
		p.WriteBackVeryLow = *in.WriteBackVeryLow
	}
	return p, nil
}
