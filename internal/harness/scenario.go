package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one rule-program test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is inline rule source. Exactly one of Rules and RulesFile is set.
	Rules string `yaml:"rules,omitempty"`

	// RulesFile is a rule source path, relative to the scenario file.
	RulesFile string `yaml:"rules_file,omitempty"`

	// Schema is an optional CUE vocabulary path, relative to the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// LoadError is the error kind loading the program must fail with.
	LoadError string `yaml:"load_error,omitempty"`

	// MaxRounds overrides the per-stratum round limit when non-zero.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	// Steps run in order against one engine.
	Steps []Step `yaml:"steps"`

	// path is the file the scenario was loaded from.
	path string
}

// Step is one action and its expectations.
type Step struct {
	// Assert is fact source submitted as one batch.
	Assert string `yaml:"assert,omitempty"`

	// Retract is fact source retracted as one delta.
	Retract string `yaml:"retract,omitempty"`

	// Evaluate recomputes every derived fact.
	Evaluate bool `yaml:"evaluate,omitempty"`

	// Query is a single positive literal such as `stale(X)`.
	Query string `yaml:"query,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Kind returns the step's action name.
func (s Step) Kind() string {
	switch {
	case s.Assert != "":
		return StepAssert
	case s.Retract != "":
		return StepRetract
	case s.Evaluate:
		return StepEvaluate
	case s.Query != "":
		return StepQuery
	}
	return StepCheck
}

// Step kinds.
const (
	StepAssert   = "assert"
	StepRetract  = "retract"
	StepEvaluate = "evaluate"
	StepQuery    = "query"
	StepCheck    = "check"
)

// Expect lists what must hold after a step.
type Expect struct {
	Contains []string `yaml:"contains,omitempty"`
	Absent   []string `yaml:"absent,omitempty"`
	Added    []string `yaml:"added,omitempty"`
	Removed  []string `yaml:"removed,omitempty"`
	Rows     []string `yaml:"rows,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
	Error    string   `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	sc.path = path

	dir := filepath.Dir(path)
	if sc.RulesFile != "" && !filepath.IsAbs(sc.RulesFile) {
		sc.RulesFile = filepath.Join(dir, sc.RulesFile)
	}
	if sc.Schema != "" && !filepath.IsAbs(sc.Schema) {
		sc.Schema = filepath.Join(dir, sc.Schema)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name. filter, when non-empty, keeps scenarios whose name contains it.
func LoadDir(dir, filter string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var out []*Scenario
	names := make(map[string]string)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := names[sc.Name]; dup {
			return nil, fmt.Errorf("scenario name %q used by both %s and %s", sc.Name, prev, path)
		}
		names[sc.Name] = path
		if filter == "" || strings.Contains(sc.Name, filter) {
			out = append(out, sc)
		}
	}
	slices.SortFunc(out, func(a, b *Scenario) int { return strings.Compare(a.path, b.path) })
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Rules == "") == (s.RulesFile == "") {
		return fmt.Errorf("exactly one of rules and rules_file is required")
	}
	if s.RulesFile != "" {
		if _, err := os.Stat(s.RulesFile); err != nil {
			return fmt.Errorf("rules file not found: %s", s.RulesFile)
		}
	}
	if s.Schema != "" {
		if _, err := os.Stat(s.Schema); err != nil {
			return fmt.Errorf("schema file not found: %s", s.Schema)
		}
	}
	if s.LoadError != "" && !slices.Contains(loadErrorKinds, s.LoadError) {
		return fmt.Errorf("load_error %q is not a load error kind (%s)", s.LoadError, strings.Join(loadErrorKinds, ", "))
	}
	if s.LoadError == "" && len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, s Step) error {
	actions := 0
	for _, set := range []bool{s.Assert != "", s.Retract != "", s.Evaluate, s.Query != ""} {
		if set {
			actions++
		}
	}
	if actions > 1 {
		return fmt.Errorf("steps[%d]: at most one of assert, retract, evaluate and query", i)
	}
	e := s.Expect
	if actions == 0 && e == nil {
		return fmt.Errorf("steps[%d]: a step without an action needs expect", i)
	}
	if e == nil {
		return nil
	}
	kind := s.Kind()
	if (len(e.Rows) > 0 || e.Count != nil) && kind != StepQuery {
		return fmt.Errorf("steps[%d].expect: rows and count apply to query steps", i)
	}
	if (len(e.Added) > 0 || len(e.Removed) > 0) && kind != StepAssert && kind != StepRetract {
		return fmt.Errorf("steps[%d].expect: added and removed apply to assert and retract steps", i)
	}
	if e.Count != nil && *e.Count < 0 {
		return fmt.Errorf("steps[%d].expect: count must be non-negative", i)
	}
	if e.Error != "" && !slices.Contains(runtimeErrorKinds, e.Error) {
		return fmt.Errorf("steps[%d].expect: error %q is not a runtime error kind (%s)", i, e.Error, strings.Join(runtimeErrorKinds, ", "))
	}
	return nil
}
