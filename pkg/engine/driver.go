package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabwright/tabwright/pkg/eventbus"
	"github.com/tabwright/tabwright/pkg/events"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/otelhelper"
	"github.com/tabwright/tabwright/pkg/pagehost"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrElementNotFound is a per-step failure: the step's selector
	// matched nothing on the current page.
	ErrElementNotFound = errors.New("element not found")

	// ErrWaitTimeout is a per-step failure: the awaited element did not
	// appear within the step's timeout.
	ErrWaitTimeout = errors.New("timed out waiting for element")
)

const (
	// defaultStepDelay gives the page time to settle between steps.
	defaultStepDelay = 500 * time.Millisecond

	defaultPollInterval = 250 * time.Millisecond
	defaultWaitTimeout  = 10 * time.Second
)

// StepResult records the outcome of one replayed step.
type StepResult struct {
	Index int         `json:"index"`
	Step  models.Step `json:"step"`
	Err   error       `json:"-"`
}

// RunResult summarizes a finished replay.
type RunResult struct {
	WorkflowID   string        `json:"workflowId"`
	WorkflowName string        `json:"workflowName"`
	Executed     int           `json:"executed"`
	Failures     []StepResult  `json:"failures,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Driver replays workflow steps against a page host. Steps are pulled
// from the engine one at a time; a step failure is recorded and the run
// carries on with the next step.
type Driver struct {
	engine *Engine
	host   pagehost.Host
	bus    eventbus.EventBus
	logger *slog.Logger

	stepDelay    time.Duration
	pollInterval time.Duration
	waitTimeout  time.Duration
}

// NewDriver creates a replay driver. The event bus is optional.
func NewDriver(engine *Engine, host pagehost.Host, bus eventbus.EventBus, logger *slog.Logger) *Driver {
	return &Driver{
		engine:       engine,
		host:         host,
		bus:          bus,
		logger:       logger.With("module", "driver"),
		stepDelay:    defaultStepDelay,
		pollInterval: defaultPollInterval,
		waitTimeout:  defaultWaitTimeout,
	}
}

// RunWorkflow starts a run for the named workflow and drives it to
// completion. The returned result lists every failed step; only a
// failure to start the run is reported as an error.
func (d *Driver) RunWorkflow(ctx context.Context, name string) (*RunResult, error) {
	run, err := d.engine.Run(ctx, name)
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer("tabwright/engine")
	ctx, span := otelhelper.StartSpan(ctx, tracer, "driver.run_workflow",
		attribute.String(otelhelper.WorkflowIDKey, run.ID),
		attribute.String(otelhelper.WorkflowNameKey, run.WorkflowName))
	defer span.End()

	started := time.Now()
	result := &RunResult{WorkflowID: run.ID, WorkflowName: run.WorkflowName}

	for {
		next, err := d.engine.NextStep(run.ID)
		if err != nil {
			otelhelper.SetError(span, err)

			return result, err
		}

		if next.Complete {
			break
		}

		stepErr := d.ExecuteStep(ctx, *next.Step)
		result.Executed++

		if stepErr != nil {
			d.logger.WarnContext(ctx, "Step failed",
				"workflow", run.WorkflowName, "step", next.CurrentStep, "type", next.Step.Type, "error", stepErr)
			result.Failures = append(result.Failures, StepResult{
				Index: next.CurrentStep,
				Step:  *next.Step,
				Err:   stepErr,
			})
		}

		d.publishStep(ctx, run.ID, next, stepErr)

		if next.CurrentStep < next.TotalSteps {
			if err := sleepCtx(ctx, d.stepDelay); err != nil {
				otelhelper.SetError(span, err)

				return result, err
			}
		}
	}

	result.Duration = time.Since(started)

	span.SetAttributes(
		attribute.Int("tabwright.run.executed", result.Executed),
		attribute.Int("tabwright.run.failed", len(result.Failures)))
	d.logger.InfoContext(ctx, "Workflow run finished",
		"workflow", run.WorkflowName, "executed", result.Executed, "failed", len(result.Failures))

	d.publish(ctx, run.ID, events.RunFinished{
		BaseEvent:   d.baseEvent(events.RunFinishedEvent),
		WorkflowID:  run.ID,
		TotalSteps:  result.Executed,
		FailedSteps: len(result.Failures),
		Duration:    result.Duration,
	})

	return result, nil
}

// ExecuteStep performs one step against the page host.
func (d *Driver) ExecuteStep(ctx context.Context, step models.Step) error {
	switch step.Type {
	case models.StepNavigation:
		return d.host.Navigate(ctx, step.Value)
	case models.StepClick:
		return d.runScript(ctx, pagehost.ClickScript(step.Selector))
	case models.StepInput, models.StepSelect:
		return d.runScript(ctx, pagehost.SetValueScript(step.Selector, step.Value))
	case models.StepCheckbox, models.StepRadio:
		checked := step.Checked != nil && *step.Checked

		return d.runScript(ctx, pagehost.SetCheckedScript(step.Selector, checked))
	case models.StepSubmit:
		return d.runScript(ctx, pagehost.SubmitScript(step.Selector))
	case models.StepWait:
		return sleepCtx(ctx, time.Duration(step.DurationMS)*time.Millisecond)
	case models.StepWaitForElement:
		return d.waitForElement(ctx, step)
	case models.StepFormFill:
		return d.fillForm(ctx, step)
	default:
		return fmt.Errorf("%w: %s", models.ErrUnknownStepType, step.Type)
	}
}

func (d *Driver) waitForElement(ctx context.Context, step models.Step) error {
	timeout := d.waitTimeout
	if step.TimeoutMS > 0 {
		timeout = time.Duration(step.TimeoutMS) * time.Millisecond
	}

	err := PollUntil(ctx, d.pollInterval, timeout, func(ctx context.Context) (bool, error) {
		result, err := d.host.ExecuteScript(ctx, pagehost.ExistsScript(step.Selector))
		if err != nil {
			return false, err
		}

		exists, _ := result.(bool)

		return exists, nil
	})
	if errors.Is(err, ErrPollTimeout) {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, step.Selector)
	}

	return err
}

func (d *Driver) fillForm(ctx context.Context, step models.Step) error {
	for _, field := range step.Fields {
		var script string
		if field.Checked != nil {
			script = pagehost.SetCheckedScript(field.Selector, *field.Checked)
		} else {
			script = pagehost.SetValueScript(field.Selector, field.Value)
		}

		if err := d.runScript(ctx, script); err != nil {
			return err
		}
	}

	if step.Submit != "" {
		return d.runScript(ctx, pagehost.ClickScript(step.Submit))
	}

	return nil
}

// runScript executes a page script that reports whether its target was
// found. A false result means the selector matched nothing.
func (d *Driver) runScript(ctx context.Context, script string) error {
	result, err := d.host.ExecuteScript(ctx, script)
	if err != nil {
		return err
	}

	if found, ok := result.(bool); ok && !found {
		return ErrElementNotFound
	}

	return nil
}

func (d *Driver) publishStep(ctx context.Context, workflowID string, next *NextStep, stepErr error) {
	errText := ""
	if stepErr != nil {
		errText = stepErr.Error()
	}

	d.publish(ctx, workflowID, events.RunStep{
		BaseEvent:  d.baseEvent(events.RunStepEvent),
		WorkflowID: workflowID,
		StepIndex:  next.CurrentStep,
		StepType:   string(next.Step.Type),
		Error:      errText,
	})
}

func (d *Driver) baseEvent(eventType events.EventType) events.BaseEvent {
	id := ""
	if d.bus != nil {
		id = d.bus.GenerateID()
	}

	return events.BaseEvent{ID: id, Type: eventType, Timestamp: time.Now().UTC()}
}

func (d *Driver) publish(ctx context.Context, key string, event events.Event) {
	if d.bus == nil {
		return
	}

	if err := d.bus.Publish(ctx, key, event); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish run event", "type", event.GetType(), "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
