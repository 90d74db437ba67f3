package harness

// Trace actions.
const (
	ActionMerged   = "merged"   // record advanced the watermark
	ActionDeferred = "deferred" // record stored in the backlog
	ActionRejected = "rejected" // record violated a frontier invariant
)

// TraceEvent is one arrival as the frontier saw it.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Start     string `json:"start"`
	Length    uint64 `json:"length"`
	Action    string `json:"action"`
	Merged    int    `json:"merged"`    // records folded in by this arrival
	Watermark string `json:"watermark"` // after the arrival
	Backlog   int    `json:"backlog"`   // after the arrival
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the final state matches expect and no invariant check failed.
	Pass bool `json:"pass"`

	// Trace contains one event per arrival in scenario order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Watermark and Backlog are the final frontier state.
	Watermark string `json:"watermark"`
	Backlog   int    `json:"backlog"`

	// ErrorCode is the runtime error code that stopped the arrivals, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Permutations is how many arrival orders were checked (1 without permute).
	Permutations int `json:"permutations"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
