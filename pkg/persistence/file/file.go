// Package file provides single-document JSON persistence for workflows.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
)

const documentName = "workflows.json"

// Persistence implements persistence.Persistence against a single JSON
// document mapping workflow name to workflow record. Every mutation is a
// load-modify-write of the whole file under one mutex hold, so no two
// mutating calls can interleave their read and write halves.
type Persistence struct {
	root   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewPersistence creates a file-backed workflow store rooted at the given
// data directory. The directory is created on first write.
func NewPersistence(root string, logger *slog.Logger) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:   cleanRoot,
		logger: logger.With("module", "file_persistence"),
	}
}

func (fp *Persistence) documentPath() string {
	return filepath.Join(fp.root, documentName)
}

// load reads the whole document. A missing file yields an empty store; a
// corrupt file is logged and also degrades to an empty store so the
// application stays usable.
func (fp *Persistence) load(ctx context.Context) map[string]*models.Workflow {
	workflows := make(map[string]*models.Workflow)

	body, err := os.ReadFile(fp.documentPath())
	if err != nil {
		if !os.IsNotExist(err) {
			fp.logger.WarnContext(ctx, "Failed to read workflow document, starting empty", "error", err)
		}

		return workflows
	}

	if err := json.Unmarshal(body, &workflows); err != nil {
		fp.logger.WarnContext(ctx, "Workflow document is corrupt, starting empty", "error", err)

		return make(map[string]*models.Workflow)
	}

	return workflows
}

// store serializes the whole document and overwrites the file.
func (fp *Persistence) store(workflows map[string]*models.Workflow) error {
	if err := os.MkdirAll(fp.root, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(workflows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow document: %w", err)
	}

	if err := os.WriteFile(fp.documentPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write workflow document: %w", err)
	}

	return nil
}

// GetAll returns the full name-to-workflow mapping.
func (fp *Persistence) GetAll(ctx context.Context) (map[string]*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.load(ctx), nil
}

// Get returns the workflow stored under name.
func (fp *Persistence) Get(ctx context.Context, name string) (*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflow, ok := fp.load(ctx)[name]
	if !ok {
		return nil, persistence.NewWorkflowError("Get", name, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// Save stores a new workflow under name, overwriting any existing entry.
func (fp *Persistence) Save(ctx context.Context, name string, steps []models.Step) (*models.Workflow, error) {
	if len(steps) == 0 {
		return nil, persistence.NewWorkflowError("Save", name, persistence.ErrEmptyWorkflow)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflows := fp.load(ctx)
	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      name,
		Steps:     steps,
		CreatedAt: time.Now().UnixMilli(),
	}
	workflows[name] = workflow

	if err := fp.store(workflows); err != nil {
		return nil, persistence.NewWorkflowError("Save", name, err)
	}

	return workflow, nil
}

// Update replaces the steps of an existing workflow, keeping its id and
// creation time.
func (fp *Persistence) Update(ctx context.Context, name string, steps []models.Step) (*models.Workflow, error) {
	if len(steps) == 0 {
		return nil, persistence.NewWorkflowError("Update", name, persistence.ErrEmptyWorkflow)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflows := fp.load(ctx)

	workflow, ok := workflows[name]
	if !ok {
		return nil, persistence.NewWorkflowError("Update", name, persistence.ErrWorkflowNotFound)
	}

	workflow.Steps = steps

	if err := fp.store(workflows); err != nil {
		return nil, persistence.NewWorkflowError("Update", name, err)
	}

	return workflow, nil
}

// Delete removes the workflow stored under name.
func (fp *Persistence) Delete(ctx context.Context, name string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflows := fp.load(ctx)

	if _, ok := workflows[name]; !ok {
		return persistence.NewWorkflowError("Delete", name, persistence.ErrWorkflowNotFound)
	}

	delete(workflows, name)

	if err := fp.store(workflows); err != nil {
		return persistence.NewWorkflowError("Delete", name, err)
	}

	return nil
}

// SetSchedule attaches a schedule to the named workflow.
func (fp *Persistence) SetSchedule(ctx context.Context, name string, schedule *models.Schedule) error {
	return fp.mutate(ctx, "SetSchedule", name, func(w *models.Workflow) {
		w.Schedule = schedule
	})
}

// ClearSchedule detaches any schedule from the named workflow.
func (fp *Persistence) ClearSchedule(ctx context.Context, name string) error {
	return fp.mutate(ctx, "ClearSchedule", name, func(w *models.Workflow) {
		w.Schedule = nil
	})
}

// TouchLastRun stamps the named workflow's last-run marker.
func (fp *Persistence) TouchLastRun(ctx context.Context, name string) (int64, error) {
	now := time.Now().UnixMilli()

	err := fp.mutate(ctx, "TouchLastRun", name, func(w *models.Workflow) {
		w.LastRun = &now
	})
	if err != nil {
		return 0, err
	}

	return now, nil
}

func (fp *Persistence) mutate(ctx context.Context, op, name string, apply func(*models.Workflow)) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflows := fp.load(ctx)

	workflow, ok := workflows[name]
	if !ok {
		return persistence.NewWorkflowError(op, name, persistence.ErrWorkflowNotFound)
	}

	apply(workflow)

	if err := fp.store(workflows); err != nil {
		return persistence.NewWorkflowError(op, name, err)
	}

	return nil
}

// HealthCheck verifies the data directory is usable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		// Created lazily on first write; an absent directory is healthy.
		return nil
	} else if err != nil {
		return err
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there
// is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
