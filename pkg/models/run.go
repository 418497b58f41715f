package models

// ActiveRun is the transient cursor tracking an in-progress replay of one
// workflow. Steps are a snapshot taken at run start; the cursor advances
// only when the replay driver pulls the next step. At most one ActiveRun
// exists per workflow id at any time.
type ActiveRun struct {
	ID           string `json:"id"` // workflow id
	WorkflowName string `json:"workflowName"`
	Steps        []Step `json:"steps"`
	CurrentStep  int    `json:"currentStep"`
	StartedAt    int64  `json:"startedAt"` // epoch milliseconds
}

// Complete reports whether the cursor has consumed every step.
func (r *ActiveRun) Complete() bool {
	return r.CurrentStep >= len(r.Steps)
}
