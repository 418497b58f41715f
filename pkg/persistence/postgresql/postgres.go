// Package postgresql provides PostgreSQL-backed persistence for workflows.
//
// Workflows are stored one document per row, keyed by name, which keeps
// the store's semantics identical to the file implementation while
// letting several engine instances share one database.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to the database and runs schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Persistence{
		db:     db,
		logger: logger.With("module", "postgresql_persistence"),
	}

	if err := p.migrate(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

// GetAll returns the full name-to-workflow mapping.
func (p *Persistence) GetAll(ctx context.Context) (map[string]*models.Workflow, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name, doc FROM workflows`)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			p.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	workflows := make(map[string]*models.Workflow)

	for rows.Next() {
		var (
			name string
			doc  []byte
		)

		if err := rows.Scan(&name, &doc); err != nil {
			return nil, persistence.NewWorkflowError("GetAll", name, err)
		}

		var workflow models.Workflow
		if err := json.Unmarshal(doc, &workflow); err != nil {
			// Mirror the file store's lossy-recovery policy: a corrupt
			// row is skipped, not fatal.
			p.logger.WarnContext(ctx, "Skipping corrupt workflow row", "name", name, "error", err)

			continue
		}

		workflows[name] = &workflow
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewWorkflowError("GetAll", "", err)
	}

	return workflows, nil
}

// Get returns the workflow stored under name.
func (p *Persistence) Get(ctx context.Context, name string) (*models.Workflow, error) {
	var doc []byte

	err := p.db.QueryRowContext(ctx, `SELECT doc FROM workflows WHERE name = $1`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("Get", name, persistence.ErrWorkflowNotFound)
	} else if err != nil {
		return nil, persistence.NewWorkflowError("Get", name, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(doc, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("Get", name, err)
	}

	return &workflow, nil
}

// Save stores a new workflow under name, overwriting any existing entry.
func (p *Persistence) Save(ctx context.Context, name string, steps []models.Step) (*models.Workflow, error) {
	if len(steps) == 0 {
		return nil, persistence.NewWorkflowError("Save", name, persistence.ErrEmptyWorkflow)
	}

	workflow := &models.Workflow{
		ID:        uuid.New().String(),
		Name:      name,
		Steps:     steps,
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := p.upsert(ctx, "Save", workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces the steps of an existing workflow.
func (p *Persistence) Update(ctx context.Context, name string, steps []models.Step) (*models.Workflow, error) {
	if len(steps) == 0 {
		return nil, persistence.NewWorkflowError("Update", name, persistence.ErrEmptyWorkflow)
	}

	workflow, err := p.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	workflow.Steps = steps

	if err := p.upsert(ctx, "Update", workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Delete removes the workflow stored under name.
func (p *Persistence) Delete(ctx context.Context, name string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM workflows WHERE name = $1`, name)
	if err != nil {
		return persistence.NewWorkflowError("Delete", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", name, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", name, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// SetSchedule attaches a schedule to the named workflow.
func (p *Persistence) SetSchedule(ctx context.Context, name string, schedule *models.Schedule) error {
	return p.mutate(ctx, "SetSchedule", name, func(w *models.Workflow) {
		w.Schedule = schedule
	})
}

// ClearSchedule detaches any schedule from the named workflow.
func (p *Persistence) ClearSchedule(ctx context.Context, name string) error {
	return p.mutate(ctx, "ClearSchedule", name, func(w *models.Workflow) {
		w.Schedule = nil
	})
}

// TouchLastRun stamps the named workflow's last-run marker.
func (p *Persistence) TouchLastRun(ctx context.Context, name string) (int64, error) {
	now := time.Now().UnixMilli()

	err := p.mutate(ctx, "TouchLastRun", name, func(w *models.Workflow) {
		w.LastRun = &now
	})
	if err != nil {
		return 0, err
	}

	return now, nil
}

func (p *Persistence) mutate(ctx context.Context, op, name string, apply func(*models.Workflow)) error {
	workflow, err := p.Get(ctx, name)
	if err != nil {
		return err
	}

	apply(workflow)

	return p.upsert(ctx, op, workflow)
}

func (p *Persistence) upsert(ctx context.Context, op string, workflow *models.Workflow) error {
	doc, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewWorkflowError(op, workflow.Name, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflows (name, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, workflow.Name, doc)
	if err != nil {
		return persistence.NewWorkflowError(op, workflow.Name, err)
	}

	return nil
}

// HealthCheck verifies the database connection.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
