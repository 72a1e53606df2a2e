package harness

// StepTrace records what one step did.
type StepTrace struct {
	Step     int      `json:"step"`
	Kind     string   `json:"kind"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
	Rows     []string `json:"rows,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	Name string `json:"name"`

	// Pass is true if the program loaded as expected and every expectation
	// held.
	Pass bool `json:"pass"`

	// LoadError is the kind of load failure, if loading failed.
	LoadError string `json:"load_error,omitempty"`

	Trace []StepTrace `json:"trace"`

	// Derived lists the derived facts after the last step.
	Derived []string `json:"derived"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:    name,
		Pass:    true,
		Trace:   []StepTrace{},
		Derived: []string{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
