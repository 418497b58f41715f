// Package persistence provides the data storage abstraction for recorded workflows.
package persistence

import (
	"context"

	"github.com/tabwright/tabwright/pkg/models"
)

// Persistence is the durable store of named workflows. Names are the
// storage keys; saving under an existing name overwrites it. Every
// mutating operation is atomic with respect to the stored document.
type Persistence interface {
	// GetAll returns the full name-to-workflow mapping. A corrupt or
	// unreadable store degrades to an empty mapping rather than failing.
	GetAll(ctx context.Context) (map[string]*models.Workflow, error)

	// Get returns the workflow stored under name, or ErrWorkflowNotFound.
	Get(ctx context.Context, name string) (*models.Workflow, error)

	// Save stores a new workflow under name, assigning a fresh id and
	// creation time. Empty step sequences are rejected with
	// ErrEmptyWorkflow. An existing entry under the same name is
	// overwritten.
	Save(ctx context.Context, name string, steps []models.Step) (*models.Workflow, error)

	// Update replaces the steps of an existing workflow, leaving its id
	// and creation time untouched.
	Update(ctx context.Context, name string, steps []models.Step) (*models.Workflow, error)

	// Delete removes the workflow stored under name.
	Delete(ctx context.Context, name string) error

	// SetSchedule attaches a schedule to the named workflow.
	SetSchedule(ctx context.Context, name string, schedule *models.Schedule) error

	// ClearSchedule detaches any schedule from the named workflow.
	ClearSchedule(ctx context.Context, name string) error

	// TouchLastRun stamps the named workflow's last-run marker with the
	// current time and returns the stamped epoch milliseconds.
	TouchLastRun(ctx context.Context, name string) (int64, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
