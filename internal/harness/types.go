package harness

// StepTrace is the observed outcome of one scenario step.
type StepTrace struct {
	Index    int    `json:"index"`
	Action   string `json:"action"`
	Request  string `json:"request,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Approval string `json:"approval,omitempty"`
	SN       uint64 `json:"sn"`
	State    string `json:"state,omitempty"`
	Success  bool   `json:"success"`
	// Error is the bridge error kind when the facade refused the call.
	Error string `json:"error,omitempty"`
}

// NotificationTrace is a drained notification with labelled identifiers.
type NotificationTrace struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject,omitempty"`
	SN       uint64 `json:"sn"`
	Approval string `json:"approval,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Steps         []StepTrace         `json:"steps"`
	Notifications []NotificationTrace `json:"notifications"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final properties of every bound subject, by label.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Steps:         []StepTrace{},
		Notifications: []NotificationTrace{},
		Errors:        []string{},
		State:         make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step outcome to the trace.
func (r *Result) AddStep(step StepTrace) {
	r.Steps = append(r.Steps, step)
}

// AddNotification appends a drained notification to the trace.
func (r *Result) AddNotification(n NotificationTrace) {
	r.Notifications = append(r.Notifications, n)
}
