// Package scheduler arms timers for workflow schedules and triggers runs
// when they fire. One timer exists per workflow name; scheduling again
// cancels and replaces the previous timer.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
)

// RunFunc is invoked when a schedule fires. It receives the workflow
// name; starting the run and handling its errors is the callback's job.
type RunFunc func(ctx context.Context, workflowName string)

type Scheduler struct {
	store  persistence.Persistence
	run    RunFunc
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewScheduler(store persistence.Persistence, run RunFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		run:    run,
		logger: logger.With("module", "scheduler"),
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule persists the schedule on the named workflow and arms a timer
// for its next fire time. An existing timer for the name is cancelled
// and replaced. Returns the computed next fire time.
func (s *Scheduler) Schedule(ctx context.Context, name string, schedule *models.Schedule) (time.Time, error) {
	if err := schedule.Validate(); err != nil {
		return time.Time{}, err
	}

	next, err := schedule.NextRun(s.now())
	if err != nil {
		return time.Time{}, err
	}

	if err := s.store.SetSchedule(ctx, name, schedule); err != nil {
		return time.Time{}, err
	}

	s.arm(name, next)
	s.logger.InfoContext(ctx, "Scheduled workflow", "name", name, "type", schedule.Type, "next_run", next)

	return next, nil
}

// Unschedule cancels the workflow's timer and clears its persisted
// schedule. Unscheduling a workflow without a schedule is a no-op.
func (s *Scheduler) Unschedule(ctx context.Context, name string) error {
	s.mu.Lock()
	if timer, exists := s.timers[name]; exists {
		timer.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()

	if err := s.store.ClearSchedule(ctx, name); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil
		}

		return err
	}

	s.logger.InfoContext(ctx, "Unscheduled workflow", "name", name)

	return nil
}

// GetSchedule returns the workflow's persisted schedule, or nil when the
// workflow has none.
func (s *Scheduler) GetSchedule(ctx context.Context, name string) (*models.Schedule, error) {
	workflow, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	return workflow.Schedule, nil
}

// Restore re-arms timers for every persisted schedule. One-shot
// schedules whose time already passed are dropped from the store.
// Called once at startup.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	workflows, err := s.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0

	for _, workflow := range workflows {
		if workflow.Schedule == nil {
			continue
		}

		next, err := workflow.Schedule.NextRun(s.now())
		if err != nil {
			s.logger.WarnContext(ctx, "Dropping stale schedule", "name", workflow.Name, "error", err)

			if clearErr := s.store.ClearSchedule(ctx, workflow.Name); clearErr != nil {
				s.logger.WarnContext(ctx, "Failed to clear stale schedule", "name", workflow.Name, "error", clearErr)
			}

			continue
		}

		s.arm(workflow.Name, next)
		restored++
		s.logger.InfoContext(ctx, "Restored schedule", "name", workflow.Name, "next_run", next)
	}

	return restored, nil
}

// Stop cancels every armed timer. Schedules stay persisted so a later
// Restore can re-arm them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true

	for name, timer := range s.timers {
		timer.Stop()
		delete(s.timers, name)
	}
}

// IsArmed reports whether a timer currently exists for the name.
func (s *Scheduler) IsArmed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.timers[name]

	return exists
}

func (s *Scheduler) arm(name string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if timer, exists := s.timers[name]; exists {
		timer.Stop()
	}

	s.timers[name] = time.AfterFunc(next.Sub(s.now()), func() {
		s.fire(name)
	})
}

// fire runs when a timer elapses. Recurring schedules re-arm before the
// run callback is invoked so a long run cannot delay the next fire.
func (s *Scheduler) fire(name string) {
	ctx := context.Background()

	s.mu.Lock()
	delete(s.timers, name)
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return
	}

	// The schedule may have been replaced or cleared since this timer
	// was armed; the store holds the truth.
	current, err := s.GetSchedule(ctx, name)
	if err != nil || current == nil {
		s.logger.InfoContext(ctx, "Schedule gone before fire, skipping", "name", name)

		return
	}

	switch current.Type {
	case models.ScheduleRecurring:
		if next, err := current.NextRun(s.now()); err == nil {
			s.arm(name, next)
		}
	case models.ScheduleOnce:
		if err := s.store.ClearSchedule(ctx, name); err != nil {
			s.logger.WarnContext(ctx, "Failed to clear fired schedule", "name", name, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Schedule fired", "name", name)
	s.run(ctx, name)
}
