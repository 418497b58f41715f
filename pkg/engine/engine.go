// Package engine executes stored workflows step by step against a page host.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tabwright/tabwright/pkg/eventbus"
	"github.com/tabwright/tabwright/pkg/events"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/otelhelper"
	"github.com/tabwright/tabwright/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrAlreadyRunning is returned by Run while the same workflow id
	// still has an active run.
	ErrAlreadyRunning = errors.New("workflow is already running")

	// ErrRunNotFound is returned by NextStep when no active run exists
	// for the given workflow id.
	ErrRunNotFound = errors.New("workflow run not found")
)

// NextStep is the result of pulling one step from an active run.
type NextStep struct {
	Step        *models.Step `json:"step,omitempty"`
	CurrentStep int          `json:"currentStep"` // 1-based position of the returned step
	TotalSteps  int          `json:"totalSteps"`
	Complete    bool         `json:"complete"`
}

// Engine owns the active-run registry. Steps are iterated pull-based:
// the replay driver fetches one step at a time and the cursor advances
// only on NextStep, never speculatively.
type Engine struct {
	store  persistence.Persistence
	bus    eventbus.EventBus
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*models.ActiveRun
}

// NewEngine creates an engine backed by the given store. The event bus
// is optional; when present, run lifecycle events are published on it.
func NewEngine(store persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		bus:    bus,
		logger: logger.With("module", "engine"),
		runs:   make(map[string]*models.ActiveRun),
	}
}

// Run snapshots the named workflow into a new active run keyed by the
// workflow id and stamps the workflow's last-run marker. A second Run
// for the same id before completion fails with ErrAlreadyRunning.
func (e *Engine) Run(ctx context.Context, name string) (*models.ActiveRun, error) {
	tracer := otel.Tracer("tabwright/engine")
	ctx, span := otelhelper.StartSpan(ctx, tracer, "engine.run",
		attribute.String(otelhelper.WorkflowNameKey, name))
	defer span.End()

	workflow, err := e.store.Get(ctx, name)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	// Check-and-create under one mutex hold so two concurrent Run calls
	// can never both observe "no active run" for the same id.
	e.mu.Lock()

	if _, exists := e.runs[workflow.ID]; exists {
		e.mu.Unlock()

		return nil, ErrAlreadyRunning
	}

	run := &models.ActiveRun{
		ID:           workflow.ID,
		WorkflowName: workflow.Name,
		Steps:        workflow.CloneSteps(),
		StartedAt:    time.Now().UnixMilli(),
	}
	e.runs[workflow.ID] = run
	e.mu.Unlock()

	if _, err := e.store.TouchLastRun(ctx, name); err != nil {
		// The run cannot start if its bookkeeping write failed.
		e.mu.Lock()
		delete(e.runs, workflow.ID)
		e.mu.Unlock()

		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, workflow.ID))
	e.logger.InfoContext(ctx, "Started workflow run", "name", name, "workflow_id", workflow.ID, "steps", len(run.Steps))

	e.publish(ctx, workflow.ID, events.RunStarted{
		BaseEvent:    e.baseEvent(events.RunStartedEvent),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		TotalSteps:   len(run.Steps),
	})

	return run, nil
}

// NextStep returns the next step of the active run and advances its
// cursor. When the cursor has consumed every step the run is removed and
// a completion result is returned exactly once; any later call for the
// same id fails with ErrRunNotFound.
func (e *Engine) NextStep(workflowID string) (*NextStep, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, exists := e.runs[workflowID]
	if !exists {
		return nil, ErrRunNotFound
	}

	if run.Complete() {
		delete(e.runs, workflowID)

		return &NextStep{
			CurrentStep: run.CurrentStep,
			TotalSteps:  len(run.Steps),
			Complete:    true,
		}, nil
	}

	step := run.Steps[run.CurrentStep]
	run.CurrentStep++

	return &NextStep{
		Step:        &step,
		CurrentStep: run.CurrentStep,
		TotalSteps:  len(run.Steps),
	}, nil
}

// IsRunning reports whether the workflow id has an active run.
func (e *Engine) IsRunning(workflowID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, exists := e.runs[workflowID]

	return exists
}

// ActiveRuns returns a snapshot of the current active runs.
func (e *Engine) ActiveRuns() []*models.ActiveRun {
	e.mu.Lock()
	defer e.mu.Unlock()

	runs := make([]*models.ActiveRun, 0, len(e.runs))
	for _, run := range e.runs {
		snapshot := *run
		runs = append(runs, &snapshot)
	}

	return runs
}

func (e *Engine) baseEvent(eventType events.EventType) events.BaseEvent {
	id := ""
	if e.bus != nil {
		id = e.bus.GenerateID()
	}

	return events.BaseEvent{ID: id, Type: eventType, Timestamp: time.Now().UTC()}
}

func (e *Engine) publish(ctx context.Context, key string, event events.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish run event", "type", event.GetType(), "error", err)
	}
}
