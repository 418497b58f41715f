// Package services wires the recorder, store, execution engine and
// scheduler into one engine instance behind the external command
// surface. Every mutating command returns a result with a
// human-readable message so callers never inspect raw errors.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabwright/tabwright/pkg/engine"
	"github.com/tabwright/tabwright/pkg/eventbus"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/pagehost"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/recorder"
	"github.com/tabwright/tabwright/pkg/scheduler"
)

// Result is the outcome shape of every mutating command. Err carries
// the underlying failure for callers that need to classify it; it is
// never serialized.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// RecordingResult reports a stop-recording outcome, carrying the
// persisted workflow on success.
type RecordingResult struct {
	Result

	Workflow *models.Workflow `json:"workflow,omitempty"`
}

// RunStartResult reports a run-workflow outcome.
type RunStartResult struct {
	Result

	WorkflowID string `json:"workflowId,omitempty"`
	TotalSteps int    `json:"totalSteps,omitempty"`
}

// ScheduleResult reports a schedule outcome with the computed next fire
// time.
type ScheduleResult struct {
	Result

	NextRun *time.Time `json:"nextRun,omitempty"`
}

// ScheduleStatus is the read shape of a workflow's schedule: either
// unscheduled, or the persisted schedule plus its next fire time.
type ScheduleStatus struct {
	Scheduled bool             `json:"scheduled"`
	Schedule  *models.Schedule `json:"schedule,omitempty"`
	NextRun   *time.Time       `json:"nextRun,omitempty"`
}

// WorkflowEngine owns all workflow state for one engine instance:
// the recording session, the active-run map, the store handle and the
// schedule timers. Multiple independent engines can coexist, each with
// its own state.
type WorkflowEngine struct {
	store     persistence.Persistence
	recorder  *recorder.Recorder
	engine    *engine.Engine
	driver    *engine.Driver
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewWorkflowEngine assembles an engine over the given store and page
// host. The event bus is optional.
func NewWorkflowEngine(store persistence.Persistence, host pagehost.Host, bus eventbus.EventBus, logger *slog.Logger) *WorkflowEngine {
	eng := engine.NewEngine(store, bus, logger)

	we := &WorkflowEngine{
		store:    store,
		recorder: recorder.NewRecorder(store, logger),
		engine:   eng,
		driver:   engine.NewDriver(eng, host, bus, logger),
		logger:   logger.With("module", "services"),
	}
	we.scheduler = scheduler.NewScheduler(store, we.runScheduled, logger)

	return we
}

// Restore re-arms persisted schedules. Called once at startup.
func (we *WorkflowEngine) Restore(ctx context.Context) error {
	restored, err := we.scheduler.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore schedules: %w", err)
	}

	we.logger.InfoContext(ctx, "Restored persisted schedules", "count", restored)

	return nil
}

// Stop cancels schedule timers. Persisted state is untouched.
func (we *WorkflowEngine) Stop() {
	we.scheduler.Stop()
}

// StartRecording begins a recording session. With an empty name a
// timestamp-derived default is used.
func (we *WorkflowEngine) StartRecording(ctx context.Context, name string) Result {
	assigned, err := we.recorder.Start(name)
	if err != nil {
		return failure(err)
	}

	we.logger.InfoContext(ctx, "Recording started", "name", assigned)

	return success(fmt.Sprintf("Recording workflow: %s", assigned))
}

// StopRecording ends the session and persists the buffered steps.
func (we *WorkflowEngine) StopRecording(ctx context.Context) RecordingResult {
	workflow, err := we.recorder.Stop(ctx)
	if err != nil {
		return RecordingResult{Result: failure(err)}
	}

	return RecordingResult{
		Result:   success(fmt.Sprintf("Saved workflow: %s (%d steps)", workflow.Name, len(workflow.Steps))),
		Workflow: workflow,
	}
}

// RecordStep appends one step to the active recording.
func (we *WorkflowEngine) RecordStep(_ context.Context, step models.Step) Result {
	if err := we.recorder.RecordStep(step); err != nil {
		return failure(err)
	}

	return success(fmt.Sprintf("Recorded %s step", step.Type))
}

// IsRecording reports whether a recording session is active.
func (we *WorkflowEngine) IsRecording() bool {
	return we.recorder.IsRecording()
}

// GetWorkflows returns the full name-to-workflow mapping.
func (we *WorkflowEngine) GetWorkflows(ctx context.Context) (map[string]*models.Workflow, error) {
	return we.store.GetAll(ctx)
}

// GetWorkflow returns one stored workflow by name.
func (we *WorkflowEngine) GetWorkflow(ctx context.Context, name string) (*models.Workflow, error) {
	return we.store.Get(ctx, name)
}

// RunWorkflow creates an active run for the named workflow. Steps are
// then pulled one at a time through GetNextStep.
func (we *WorkflowEngine) RunWorkflow(ctx context.Context, name string) RunStartResult {
	run, err := we.engine.Run(ctx, name)
	if err != nil {
		return RunStartResult{Result: failure(err)}
	}

	return RunStartResult{
		Result:     success(fmt.Sprintf("Running workflow: %s", name)),
		WorkflowID: run.ID,
		TotalSteps: len(run.Steps),
	}
}

// GetNextStep pulls the next step of an active run.
func (we *WorkflowEngine) GetNextStep(workflowID string) (*engine.NextStep, error) {
	return we.engine.NextStep(workflowID)
}

// ReplayWorkflow drives a full run against the page host, executing
// every step. Used by the scheduler and the run-queue trigger.
func (we *WorkflowEngine) ReplayWorkflow(ctx context.Context, name string) (*engine.RunResult, error) {
	return we.driver.RunWorkflow(ctx, name)
}

// DeleteWorkflow removes a stored workflow. Its schedule timer, if any,
// is cancelled first.
func (we *WorkflowEngine) DeleteWorkflow(ctx context.Context, name string) Result {
	if err := we.scheduler.Unschedule(ctx, name); err != nil {
		return failure(err)
	}

	if err := we.store.Delete(ctx, name); err != nil {
		return failure(err)
	}

	return success(fmt.Sprintf("Deleted workflow: %s", name))
}

// Schedule attaches a schedule to the workflow and arms its timer.
func (we *WorkflowEngine) Schedule(ctx context.Context, name string, sched *models.Schedule) ScheduleResult {
	next, err := we.scheduler.Schedule(ctx, name, sched)
	if err != nil {
		return ScheduleResult{Result: failure(err)}
	}

	return ScheduleResult{
		Result:  success(fmt.Sprintf("Scheduled workflow %s, next run at %s", name, next.Format(time.RFC3339))),
		NextRun: &next,
	}
}

// Unschedule clears the workflow's schedule and cancels its timer.
func (we *WorkflowEngine) Unschedule(ctx context.Context, name string) Result {
	if err := we.scheduler.Unschedule(ctx, name); err != nil {
		return failure(err)
	}

	return success(fmt.Sprintf("Unscheduled workflow: %s", name))
}

// GetSchedule reports the workflow's schedule state. The next fire time
// is recomputed at read time; a stale one-shot still reports its
// schedule, just with no next fire time.
func (we *WorkflowEngine) GetSchedule(ctx context.Context, name string) (*ScheduleStatus, error) {
	schedule, err := we.scheduler.GetSchedule(ctx, name)
	if err != nil {
		return nil, err
	}

	if schedule == nil {
		return &ScheduleStatus{}, nil
	}

	status := &ScheduleStatus{Scheduled: true, Schedule: schedule}
	if next, err := schedule.NextRun(time.Now()); err == nil {
		status.NextRun = &next
	}

	return status, nil
}

// runScheduled is the scheduler's fire callback: an unattended full
// replay. A failed start is logged; schedule timers stay intact.
func (we *WorkflowEngine) runScheduled(ctx context.Context, name string) {
	result, err := we.driver.RunWorkflow(ctx, name)
	if err != nil {
		we.logger.ErrorContext(ctx, "Scheduled run failed to start", "name", name, "error", err)

		return
	}

	we.logger.InfoContext(ctx, "Scheduled run finished",
		"name", name, "executed", result.Executed, "failed", len(result.Failures))
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}

func failure(err error) Result {
	return Result{Success: false, Message: messageFor(err), Err: err}
}

// messageFor keeps caller-facing messages stable for the known failure
// modes and falls back to the raw error text otherwise.
func messageFor(err error) string {
	switch {
	case errors.Is(err, recorder.ErrAlreadyRecording):
		return "Already recording a workflow"
	case errors.Is(err, recorder.ErrNotRecording):
		return "No active recording"
	case errors.Is(err, engine.ErrAlreadyRunning):
		return "Workflow is already running"
	case errors.Is(err, engine.ErrRunNotFound):
		return "Workflow run not found"
	case errors.Is(err, models.ErrScheduleInPast):
		return "Schedule time is in the past"
	case persistence.IsWorkflowNotFound(err):
		return "Workflow not found"
	case persistence.IsEmptyWorkflow(err):
		return "Cannot save an empty workflow"
	default:
		return err.Error()
	}
}
