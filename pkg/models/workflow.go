package models

// Workflow is a named, ordered sequence of recorded browser steps. The
// name doubles as the storage key in the persisted document; the ID is
// assigned once at save time and stays stable for the workflow's lifetime.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"      validate:"required"`
	Steps     []Step    `json:"steps"     validate:"required,min=1"`
	CreatedAt int64     `json:"createdAt"` // epoch milliseconds, immutable after save
	LastRun   *int64    `json:"lastRun"`   // epoch milliseconds, nil until the first run
	Schedule  *Schedule `json:"schedule,omitempty"`
}

// CloneSteps returns an independent copy of the workflow's steps, used to
// snapshot a run so later store mutations cannot affect it.
func (w *Workflow) CloneSteps() []Step {
	steps := make([]Step, len(w.Steps))
	copy(steps, w.Steps)

	for i := range steps {
		if len(w.Steps[i].Fields) > 0 {
			fields := make([]FormField, len(w.Steps[i].Fields))
			copy(fields, w.Steps[i].Fields)
			steps[i].Fields = fields
		}
	}

	return steps
}
