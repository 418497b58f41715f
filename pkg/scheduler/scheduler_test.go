package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/persistence/file"
)

type runRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *runRecorder) run(_ context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names = append(r.names, name)
}

func (r *runRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.names...)
}

func newTestScheduler(t *testing.T) (*Scheduler, persistence.Persistence, *runRecorder) {
	t.Helper()

	store := file.NewPersistence(t.TempDir(), slog.Default())
	recorder := &runRecorder{}
	sched := NewScheduler(store, recorder.run, slog.Default())
	t.Cleanup(sched.Stop)

	return sched, store, recorder
}

func saveWorkflow(t *testing.T, store persistence.Persistence, name string) {
	t.Helper()

	_, err := store.Save(context.Background(), name, []models.Step{
		{Type: models.StepNavigation, Value: "https://example.com"},
	})
	require.NoError(t, err)
}

func intPtr(v int) *int { return &v }

func dailySchedule() *models.Schedule {
	return &models.Schedule{
		Type:     models.ScheduleRecurring,
		Interval: models.IntervalDaily,
		Hour:     intPtr(3),
	}
}

func TestSchedulerSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("persists and arms a recurring schedule", func(t *testing.T) {
		sched, store, _ := newTestScheduler(t)
		saveWorkflow(t, store, "Nightly")

		next, err := sched.Schedule(ctx, "Nightly", dailySchedule())
		require.NoError(t, err)

		assert.True(t, next.After(time.Now()))
		assert.Equal(t, 3, next.Hour())
		assert.True(t, sched.IsArmed("Nightly"))

		stored, err := sched.GetSchedule(ctx, "Nightly")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.ScheduleRecurring, stored.Type)
	})

	t.Run("replaces an existing timer", func(t *testing.T) {
		sched, store, _ := newTestScheduler(t)
		saveWorkflow(t, store, "Nightly")

		_, err := sched.Schedule(ctx, "Nightly", dailySchedule())
		require.NoError(t, err)

		hourly := &models.Schedule{Type: models.ScheduleRecurring, Interval: models.IntervalHourly, Minute: 30}
		next, err := sched.Schedule(ctx, "Nightly", hourly)
		require.NoError(t, err)

		assert.Equal(t, 30, next.Minute())
		assert.True(t, sched.IsArmed("Nightly"))

		stored, err := sched.GetSchedule(ctx, "Nightly")
		require.NoError(t, err)
		assert.Equal(t, models.IntervalHourly, stored.Interval)
	})

	t.Run("workflow not found", func(t *testing.T) {
		sched, _, _ := newTestScheduler(t)

		_, err := sched.Schedule(ctx, "missing", dailySchedule())
		assert.True(t, persistence.IsWorkflowNotFound(err))
		assert.False(t, sched.IsArmed("missing"))
	})

	t.Run("one-shot in the past is rejected", func(t *testing.T) {
		sched, store, _ := newTestScheduler(t)
		saveWorkflow(t, store, "Once")

		past := &models.Schedule{
			Type:     models.ScheduleOnce,
			Datetime: time.Now().Add(-time.Hour).Format(time.RFC3339),
		}
		_, err := sched.Schedule(ctx, "Once", past)
		assert.ErrorIs(t, err, models.ErrScheduleInPast)
		assert.False(t, sched.IsArmed("Once"))
	})

	t.Run("invalid schedule is rejected before persisting", func(t *testing.T) {
		sched, store, _ := newTestScheduler(t)
		saveWorkflow(t, store, "Broken")

		bad := &models.Schedule{Type: models.ScheduleRecurring, Interval: models.IntervalDaily}
		_, err := sched.Schedule(ctx, "Broken", bad)
		assert.ErrorIs(t, err, models.ErrInvalidSchedule)

		stored, err := sched.GetSchedule(ctx, "Broken")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})
}

func TestSchedulerUnschedule(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels timer and clears persisted schedule", func(t *testing.T) {
		sched, store, _ := newTestScheduler(t)
		saveWorkflow(t, store, "Nightly")

		_, err := sched.Schedule(ctx, "Nightly", dailySchedule())
		require.NoError(t, err)

		require.NoError(t, sched.Unschedule(ctx, "Nightly"))
		assert.False(t, sched.IsArmed("Nightly"))

		stored, err := sched.GetSchedule(ctx, "Nightly")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("no-op without a schedule", func(t *testing.T) {
		sched, store, _ := newTestScheduler(t)
		saveWorkflow(t, store, "Plain")

		assert.NoError(t, sched.Unschedule(ctx, "Plain"))
	})

	t.Run("no-op for unknown workflow", func(t *testing.T) {
		sched, _, _ := newTestScheduler(t)

		assert.NoError(t, sched.Unschedule(ctx, "missing"))
	})
}

func TestSchedulerFire(t *testing.T) {
	ctx := context.Background()

	t.Run("recurring re-arms before invoking the run callback", func(t *testing.T) {
		sched, store, recorder := newTestScheduler(t)
		saveWorkflow(t, store, "Nightly")

		_, err := sched.Schedule(ctx, "Nightly", dailySchedule())
		require.NoError(t, err)

		sched.fire("Nightly")

		assert.True(t, sched.IsArmed("Nightly"))
		assert.Equal(t, []string{"Nightly"}, recorder.calls())

		stored, err := sched.GetSchedule(ctx, "Nightly")
		require.NoError(t, err)
		assert.NotNil(t, stored)
	})

	t.Run("one-shot clears its schedule after firing", func(t *testing.T) {
		sched, store, recorder := newTestScheduler(t)
		saveWorkflow(t, store, "Once")

		once := &models.Schedule{
			Type:     models.ScheduleOnce,
			Datetime: time.Now().Add(time.Hour).Format(time.RFC3339),
		}
		_, err := sched.Schedule(ctx, "Once", once)
		require.NoError(t, err)

		sched.fire("Once")

		assert.False(t, sched.IsArmed("Once"))
		assert.Equal(t, []string{"Once"}, recorder.calls())

		stored, err := sched.GetSchedule(ctx, "Once")
		require.NoError(t, err)
		assert.Nil(t, stored)
	})

	t.Run("skips when the schedule was cleared meanwhile", func(t *testing.T) {
		sched, store, recorder := newTestScheduler(t)
		saveWorkflow(t, store, "Gone")

		_, err := sched.Schedule(ctx, "Gone", dailySchedule())
		require.NoError(t, err)
		require.NoError(t, store.ClearSchedule(ctx, "Gone"))

		sched.fire("Gone")

		assert.Empty(t, recorder.calls())
	})
}

func TestSchedulerRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("re-arms persisted schedules", func(t *testing.T) {
		store := file.NewPersistence(t.TempDir(), slog.Default())
		saveWorkflow(t, store, "Nightly")
		saveWorkflow(t, store, "Plain")
		require.NoError(t, store.SetSchedule(ctx, "Nightly", dailySchedule()))

		recorder := &runRecorder{}
		sched := NewScheduler(store, recorder.run, slog.Default())
		t.Cleanup(sched.Stop)

		restored, err := sched.Restore(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, restored)
		assert.True(t, sched.IsArmed("Nightly"))
		assert.False(t, sched.IsArmed("Plain"))
	})

	t.Run("drops stale one-shots", func(t *testing.T) {
		store := file.NewPersistence(t.TempDir(), slog.Default())
		saveWorkflow(t, store, "Stale")
		require.NoError(t, store.SetSchedule(ctx, "Stale", &models.Schedule{
			Type:     models.ScheduleOnce,
			Datetime: time.Now().Add(-time.Minute).Format(time.RFC3339),
		}))

		recorder := &runRecorder{}
		sched := NewScheduler(store, recorder.run, slog.Default())
		t.Cleanup(sched.Stop)

		restored, err := sched.Restore(ctx)
		require.NoError(t, err)

		assert.Zero(t, restored)
		assert.False(t, sched.IsArmed("Stale"))

		workflow, err := store.Get(ctx, "Stale")
		require.NoError(t, err)
		assert.Nil(t, workflow.Schedule)
	})
}
