package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence/file"
	"github.com/tabwright/tabwright/pkg/services"
	"github.com/tabwright/tabwright/pkg/templates"
	"github.com/tabwright/tabwright/pkg/web"
)

type stubHost struct{}

func (stubHost) Navigate(_ context.Context, _ string) error { return nil }

func (stubHost) ExecuteScript(_ context.Context, _ string) (any, error) { return true, nil }

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	root := t.TempDir()
	store := file.NewPersistence(root, slog.Default())
	engine := services.NewWorkflowEngine(store, stubHost{}, nil, slog.Default())
	t.Cleanup(engine.Stop)

	templateStore := templates.NewStore(root, slog.Default())
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(engine, store, store, templateStore, nil, validate)

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, data
}

func recordDemo(t *testing.T, app *fiber.App, name string) {
	t.Helper()

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/recording/start", fiber.Map{"name": name})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/recording/steps", models.Step{Type: models.StepNavigation, Value: "https://a.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/recording/steps", models.Step{Type: models.StepClick, Selector: "#go"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/recording/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecordingEndpoints(t *testing.T) {
	t.Run("record and list", func(t *testing.T) {
		app := setupTestApp(t)
		recordDemo(t, app, "demo")

		resp, body := doJSON(t, app, http.MethodGet, "/workflows/", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var workflows map[string]models.Workflow
		require.NoError(t, json.Unmarshal(body, &workflows))
		require.Contains(t, workflows, "demo")
		assert.Len(t, workflows["demo"].Steps, 2)
	})

	t.Run("start twice conflicts", func(t *testing.T) {
		app := setupTestApp(t)

		resp, _ := doJSON(t, app, http.MethodPost, "/workflows/recording/start", fiber.Map{"name": "one"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := doJSON(t, app, http.MethodPost, "/workflows/recording/start", fiber.Map{"name": "two"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		var result services.Result
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Success)
		assert.Equal(t, "Already recording a workflow", result.Message)
	})

	t.Run("stop without recording", func(t *testing.T) {
		app := setupTestApp(t)

		resp, _ := doJSON(t, app, http.MethodPost, "/workflows/recording/stop", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestRunEndpoints(t *testing.T) {
	t.Run("run and pull steps", func(t *testing.T) {
		app := setupTestApp(t)
		recordDemo(t, app, "demo")

		resp, body := doJSON(t, app, http.MethodPost, "/workflows/demo/run", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var started struct {
			Success    bool   `json:"success"`
			WorkflowID string `json:"workflowId"`
			TotalSteps int    `json:"totalSteps"`
		}
		require.NoError(t, json.Unmarshal(body, &started))
		require.True(t, started.Success)
		assert.Equal(t, 2, started.TotalSteps)

		for range 2 {
			resp, body = doJSON(t, app, http.MethodGet, "/runs/"+started.WorkflowID+"/next", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var next struct {
				Complete bool `json:"complete"`
			}
			require.NoError(t, json.Unmarshal(body, &next))
			assert.False(t, next.Complete)
		}

		resp, body = doJSON(t, app, http.MethodGet, "/runs/"+started.WorkflowID+"/next", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var done struct {
			Complete bool `json:"complete"`
		}
		require.NoError(t, json.Unmarshal(body, &done))
		assert.True(t, done.Complete)

		resp, _ = doJSON(t, app, http.MethodGet, "/runs/"+started.WorkflowID+"/next", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("run unknown workflow", func(t *testing.T) {
		app := setupTestApp(t)

		resp, _ := doJSON(t, app, http.MethodPost, "/workflows/missing/run", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("second run conflicts", func(t *testing.T) {
		app := setupTestApp(t)
		recordDemo(t, app, "demo")

		resp, _ := doJSON(t, app, http.MethodPost, "/workflows/demo/run", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodPost, "/workflows/demo/run", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestWorkflowEndpoints(t *testing.T) {
	t.Run("delete workflow", func(t *testing.T) {
		app := setupTestApp(t)
		recordDemo(t, app, "demo")

		resp, _ := doJSON(t, app, http.MethodDelete, "/workflows/demo", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/workflows/demo", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete unknown workflow", func(t *testing.T) {
		app := setupTestApp(t)

		resp, _ := doJSON(t, app, http.MethodDelete, "/workflows/missing", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestScheduleEndpoints(t *testing.T) {
	t.Run("set read and clear", func(t *testing.T) {
		app := setupTestApp(t)
		recordDemo(t, app, "nightly")

		resp, body := doJSON(t, app, http.MethodPut, "/workflows/nightly/schedule", fiber.Map{
			"type":     "recurring",
			"interval": "daily",
			"hour":     3,
			"minute":   0,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var scheduled struct {
			Success bool       `json:"success"`
			NextRun *time.Time `json:"nextRun"`
		}
		require.NoError(t, json.Unmarshal(body, &scheduled))
		require.True(t, scheduled.Success)
		require.NotNil(t, scheduled.NextRun)
		assert.True(t, scheduled.NextRun.After(time.Now()))

		type scheduleStatus struct {
			Scheduled bool             `json:"scheduled"`
			Schedule  *models.Schedule `json:"schedule"`
			NextRun   *time.Time       `json:"nextRun"`
		}

		var status scheduleStatus

		resp, body = doJSON(t, app, http.MethodGet, "/workflows/nightly/schedule", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &status))
		require.True(t, status.Scheduled)
		require.NotNil(t, status.Schedule)
		assert.Equal(t, models.IntervalDaily, status.Schedule.Interval)
		require.NotNil(t, status.NextRun)
		assert.True(t, status.NextRun.After(time.Now()))

		resp, _ = doJSON(t, app, http.MethodDelete, "/workflows/nightly/schedule", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body = doJSON(t, app, http.MethodGet, "/workflows/nightly/schedule", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		status = scheduleStatus{}
		require.NoError(t, json.Unmarshal(body, &status))
		assert.False(t, status.Scheduled)
		assert.Nil(t, status.Schedule)
		assert.Nil(t, status.NextRun)
	})

	t.Run("one-shot in the past", func(t *testing.T) {
		app := setupTestApp(t)
		recordDemo(t, app, "stale")

		resp, body := doJSON(t, app, http.MethodPut, "/workflows/stale/schedule", fiber.Map{
			"type":     "once",
			"datetime": time.Now().Add(-time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(body), "in the past")
	})
}

func TestTemplateEndpoints(t *testing.T) {
	t.Run("crud", func(t *testing.T) {
		app := setupTestApp(t)

		resp, _ := doJSON(t, app, http.MethodPost, "/templates/", fiber.Map{
			"name": "Signup",
			"fields": []fiber.Map{
				{"name": "email", "selector": "#email", "value": "a@b.c"},
			},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := doJSON(t, app, http.MethodGet, "/templates/Signup", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "#email")

		resp, _ = doJSON(t, app, http.MethodDelete, "/templates/Signup", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, http.MethodGet, "/templates/Signup", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("rejects template without fields", func(t *testing.T) {
		app := setupTestApp(t)

		resp, _ := doJSON(t, app, http.MethodPost, "/templates/", fiber.Map{"name": "Empty"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestImportExportEndpoints(t *testing.T) {
	app := setupTestApp(t)
	recordDemo(t, app, "demo")

	resp, exported := doJSON(t, app, http.MethodGet, "/workflows/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(exported), "demo")

	// A fresh app imports the exported document.
	fresh := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/workflows/import", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/json")

	importResp, err := fresh.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	require.NoError(t, importResp.Body.Close())
	assert.Equal(t, http.StatusOK, importResp.StatusCode)

	resp, body := doJSON(t, fresh, http.MethodGet, "/workflows/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "demo")
}

func TestAnalyzeWithoutModelServer(t *testing.T) {
	app := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/analyze", fiber.Map{
		"content": "<form></form>",
		"url":     "https://example.com",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}
