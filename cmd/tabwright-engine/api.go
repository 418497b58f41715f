// Package main runs the tabwright workflow engine: the recording and
// replay API server plus the schedule and queue triggers.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/tabwright/tabwright/pkg/llm"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/services"
	"github.com/tabwright/tabwright/pkg/templates"
	"github.com/tabwright/tabwright/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *services.WorkflowEngine
	templates   *templates.Store
	llm         *llm.Client
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	engine *services.WorkflowEngine,
	templateStore *templates.Store,
	llmClient *llm.Client,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		engine:      engine,
		templates:   templateStore,
		llm:         llmClient,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	// Stores without a whole-document form simply lack import/export.
	porter, _ := a.persistence.(web.Porter)

	handlers := web.NewAPIHandlers(a.engine, a.persistence, porter, a.templates, a.llm, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Tabwright Engine")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
