package harness

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step and expectation held.
	Pass bool `json:"pass"`

	// Export is the full export taken after the last step.
	Export string `json:"export"`

	// Lines is Export split into lines without their newlines.
	Lines []string `json:"lines"`

	// OverflowNotices is the tracer's notice count after the last step.
	OverflowNotices uint32 `json:"overflow_notices"`

	// Counts holds the stored event count per context.
	Counts []uint64 `json:"counts"`

	// Errors lists every failed step or expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Lines:  []string{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
