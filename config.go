package bo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//////
// Declarative study descriptors.
//
// A study file describes a search space and a run budget in YAML, for use
// by the CLI and by callers that keep their experiment definitions out of
// code:
//
//	name: branin-demo
//	objective: branin
//	seed: 42
//	parameters:
//	  - name: x1
//	    type: continuous
//	    min: -5
//	    max: 10
//	  - name: x2
//	    type: continuous
//	    min: 0
//	    max: 15
//	budget:
//	  warm_start: 10
//	  rounds: 50
//	  batch_size: 1
//////

// Study is a parsed, validated study descriptor.
type Study struct {
	// Name labels the study in logs and output.
	Name string `yaml:"name"`

	// Objective names the objective to optimize. The CLI resolves it
	// against the built-in benchmarks.
	Objective string `yaml:"objective"`

	// Maximize flips the optimization direction (default: minimize).
	Maximize bool `yaml:"maximize"`

	// Seed derives every random source of the run.
	Seed int64 `yaml:"seed"`

	// Parameters declares the search space.
	Parameters []StudyParameter `yaml:"parameters"`

	// Budget holds the run budgets.
	Budget StudyBudget `yaml:"budget"`
}

// StudyParameter is the YAML form of a ParameterSpec.
type StudyParameter struct {
	Name   string   `yaml:"name"`
	Type   string   `yaml:"type"`
	Min    float64  `yaml:"min"`
	Max    float64  `yaml:"max"`
	Values []string `yaml:"values"`
}

// StudyBudget is the YAML form of the driver budgets. Zero fields fall back
// to DefaultConfig values.
type StudyBudget struct {
	WarmStart              int    `yaml:"warm_start"`
	Rounds                 int    `yaml:"rounds"`
	BatchSize              int    `yaml:"batch_size"`
	NumCandidates          int    `yaml:"num_candidates"`
	MaxConsecutiveFailures int    `yaml:"max_consecutive_failures"`
	RoundTimeout           string `yaml:"round_timeout"`
}

// LoadStudy loads and parses a study file.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study file %s: %w", path, err)
	}

	study, err := ParseStudyYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse study file %s: %w", path, err)
	}

	return study, nil
}

// ParseStudyYAML parses and validates a study descriptor.
func ParseStudyYAML(data []byte) (*Study, error) {
	var study Study

	if err := yaml.Unmarshal(data, &study); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := validateStudy(&study); err != nil {
		return nil, err
	}

	return &study, nil
}

// validateStudy performs validation on the parsed descriptor.
func validateStudy(study *Study) error {
	if len(study.Parameters) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}

	names := make(map[string]bool)

	for _, p := range study.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}

		if names[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		names[p.Name] = true

		switch p.Type {
		case "continuous", "integer":
			if p.Min >= p.Max {
				return fmt.Errorf("parameter %s: min must be less than max", p.Name)
			}
		case "categorical":
			if len(p.Values) == 0 {
				return fmt.Errorf("parameter %s: values cannot be empty", p.Name)
			}
		default:
			return fmt.Errorf(
				"parameter %s: invalid type %q (must be continuous, integer, or categorical)",
				p.Name, p.Type,
			)
		}
	}

	b := study.Budget
	if b.WarmStart < 0 || b.Rounds < 0 || b.BatchSize < 0 ||
		b.NumCandidates < 0 || b.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("budget values cannot be negative")
	}

	if b.RoundTimeout != "" {
		if _, err := time.ParseDuration(b.RoundTimeout); err != nil {
			return fmt.Errorf("invalid round_timeout %q: %w", b.RoundTimeout, err)
		}
	}

	return nil
}

// SearchSpace builds the declared search space.
func (s *Study) SearchSpace() (*SearchSpace, error) {
	specs := make([]ParameterSpec, 0, len(s.Parameters))

	for _, p := range s.Parameters {
		switch p.Type {
		case "continuous":
			specs = append(specs, Continuous(p.Name, p.Min, p.Max))
		case "integer":
			specs = append(specs, Integer(p.Name, int64(p.Min), int64(p.Max)))
		case "categorical":
			specs = append(specs, Categorical(p.Name, p.Values...))
		}
	}

	return NewSearchSpace(specs...)
}

// DriverConfig builds a driver configuration from the study budgets on top
// of DefaultConfig.
func (s *Study) DriverConfig() Config {
	config := DefaultConfig()
	config.Maximize = s.Maximize

	if s.Seed != 0 {
		config.Seed = s.Seed
	}

	b := s.Budget

	if b.WarmStart > 0 {
		config.WarmStartCount = b.WarmStart
	}

	if b.Rounds > 0 {
		config.Rounds = b.Rounds
	}

	if b.BatchSize > 0 {
		config.BatchSize = b.BatchSize
	}

	if b.NumCandidates > 0 {
		config.NumCandidates = b.NumCandidates
	}

	if b.MaxConsecutiveFailures > 0 {
		config.MaxConsecutiveFailures = b.MaxConsecutiveFailures
	}

	if b.RoundTimeout != "" {
		// Validated in validateStudy.
		config.RoundTimeout, _ = time.ParseDuration(b.RoundTimeout)
	}

	return config
}
