package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/persistence/file"
)

func newTestStore(t *testing.T) persistence.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir(), slog.Default())
}

func saveWorkflow(t *testing.T, store persistence.Persistence, name string, steps []models.Step) *models.Workflow {
	t.Helper()

	workflow, err := store.Save(context.Background(), name, steps)
	require.NoError(t, err)

	return workflow
}

func sampleSteps() []models.Step {
	return []models.Step{
		{Type: models.StepNavigation, Value: "https://example.com"},
		{Type: models.StepClick, Selector: "#login"},
		{Type: models.StepInput, Selector: "input[name=\"user\"]", Value: "alice"},
	}
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active run keyed by workflow id", func(t *testing.T) {
		store := newTestStore(t)
		workflow := saveWorkflow(t, store, "Login", sampleSteps())

		eng := NewEngine(store, nil, slog.Default())

		run, err := eng.Run(ctx, "Login")
		require.NoError(t, err)

		assert.Equal(t, workflow.ID, run.ID)
		assert.Equal(t, "Login", run.WorkflowName)
		assert.Len(t, run.Steps, 3)
		assert.Equal(t, 0, run.CurrentStep)
		assert.True(t, eng.IsRunning(workflow.ID))
	})

	t.Run("stamps last run on start", func(t *testing.T) {
		store := newTestStore(t)
		saveWorkflow(t, store, "Login", sampleSteps())

		eng := NewEngine(store, nil, slog.Default())

		_, err := eng.Run(ctx, "Login")
		require.NoError(t, err)

		stored, err := store.Get(ctx, "Login")
		require.NoError(t, err)
		require.NotNil(t, stored.LastRun)
		assert.Positive(t, *stored.LastRun)
	})

	t.Run("rejects a second run for the same workflow", func(t *testing.T) {
		store := newTestStore(t)
		saveWorkflow(t, store, "Login", sampleSteps())

		eng := NewEngine(store, nil, slog.Default())

		_, err := eng.Run(ctx, "Login")
		require.NoError(t, err)

		_, err = eng.Run(ctx, "Login")
		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		store := newTestStore(t)
		eng := NewEngine(store, nil, slog.Default())

		_, err := eng.Run(ctx, "missing")
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("run steps are a snapshot", func(t *testing.T) {
		store := newTestStore(t)
		workflow := saveWorkflow(t, store, "Login", sampleSteps())

		eng := NewEngine(store, nil, slog.Default())

		run, err := eng.Run(ctx, "Login")
		require.NoError(t, err)

		// Editing the workflow mid-run must not affect the active run.
		_, err = store.Update(ctx, "Login", []models.Step{{Type: models.StepWait, DurationMS: 1}})
		require.NoError(t, err)

		assert.Len(t, run.Steps, 3)
		assert.Equal(t, workflow.ID, run.ID)
	})
}

func TestEngineNextStep(t *testing.T) {
	ctx := context.Background()

	t.Run("walks every step then completes exactly once", func(t *testing.T) {
		store := newTestStore(t)
		workflow := saveWorkflow(t, store, "Login", sampleSteps())

		eng := NewEngine(store, nil, slog.Default())

		_, err := eng.Run(ctx, "Login")
		require.NoError(t, err)

		for i := range 3 {
			next, err := eng.NextStep(workflow.ID)
			require.NoError(t, err)
			require.NotNil(t, next.Step)
			assert.False(t, next.Complete)
			assert.Equal(t, i+1, next.CurrentStep)
			assert.Equal(t, 3, next.TotalSteps)
		}

		next, err := eng.NextStep(workflow.ID)
		require.NoError(t, err)
		assert.True(t, next.Complete)
		assert.Nil(t, next.Step)

		_, err = eng.NextStep(workflow.ID)
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.False(t, eng.IsRunning(workflow.ID))
	})

	t.Run("no active run", func(t *testing.T) {
		eng := NewEngine(newTestStore(t), nil, slog.Default())

		_, err := eng.NextStep("nope")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("workflow can run again after completion", func(t *testing.T) {
		store := newTestStore(t)
		workflow := saveWorkflow(t, store, "Login", sampleSteps()[:1])

		eng := NewEngine(store, nil, slog.Default())

		_, err := eng.Run(ctx, "Login")
		require.NoError(t, err)

		_, err = eng.NextStep(workflow.ID)
		require.NoError(t, err)

		next, err := eng.NextStep(workflow.ID)
		require.NoError(t, err)
		require.True(t, next.Complete)

		_, err = eng.Run(ctx, "Login")
		assert.NoError(t, err)
	})
}

func TestEngineActiveRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	saveWorkflow(t, store, "First", sampleSteps())
	saveWorkflow(t, store, "Second", sampleSteps())

	eng := NewEngine(store, nil, slog.Default())

	_, err := eng.Run(ctx, "First")
	require.NoError(t, err)
	_, err = eng.Run(ctx, "Second")
	require.NoError(t, err)

	runs := eng.ActiveRuns()
	assert.Len(t, runs, 2)

	names := []string{runs[0].WorkflowName, runs[1].WorkflowName}
	assert.ElementsMatch(t, []string{"First", "Second"}, names)
}
