package harness

// CallTrace records one interpreter call.
type CallTrace struct {
	Args   []string `json:"args"`
	Result string   `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and call matched.
	Pass bool `json:"pass"`

	Outcome   string `json:"outcome"`
	ErrorCode string `json:"error_code,omitempty"`
	GraphHash string `json:"graph_hash"`

	// Dump is the scheduled CFG listing, empty unless the unit scheduled.
	Dump string `json:"dump,omitempty"`

	Calls []CallTrace `json:"calls,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
