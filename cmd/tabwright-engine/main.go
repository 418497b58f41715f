package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tabwright/tabwright/pkg/capture"
	"github.com/tabwright/tabwright/pkg/cmd"
	"github.com/tabwright/tabwright/pkg/events"
	"github.com/tabwright/tabwright/pkg/llm"
	"github.com/tabwright/tabwright/pkg/log"
	"github.com/tabwright/tabwright/pkg/otelhelper"
	"github.com/tabwright/tabwright/pkg/pagehost"
	"github.com/tabwright/tabwright/pkg/services"
	"github.com/tabwright/tabwright/pkg/templates"
	"github.com/tabwright/tabwright/pkg/triggers/queue"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 8780

func main() {
	logger := log.WithModule("engine")

	command := &cli.Command{
		Name:                  "tabwright-engine",
		Usage:                 "Record, replay and schedule browser workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the engine API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Store location: a data directory (or file:// URL) or a postgres:// URL",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for auxiliary documents such as form templates",
				Value:   "./data",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "page-host-url",
				Usage:   "Base URL of the page host's navigate/execute endpoints",
				Value:   "http://localhost:8791",
				Sources: cli.EnvVars("PAGE_HOST_URL"),
			},
			&cli.StringFlag{
				Name:    "run-queue",
				Usage:   "Redis list to consume external run requests from (disabled when empty)",
				Sources: cli.EnvVars("RUN_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the run queue",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "llm-url",
				Usage:   "Base URL of the local model server (disabled when empty)",
				Sources: cli.EnvVars("LLM_URL"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Usage:   "Model name to request from the model server",
				Sources: cli.EnvVars("LLM_MODEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("ENABLE_TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Tabwright engine")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "tabwright-engine"); err != nil {
					logger.WarnContext(ctx, "Failed to initialize tracing", "error", err)
				}
			}

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close store", "error", err)
				}
			}()

			bus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			host := pagehost.NewHTTPHost(command.String("page-host-url"), logger)
			engine := services.NewWorkflowEngine(store, host, bus, logger)
			defer engine.Stop()

			// Page-host interactions arrive as bus messages and feed the
			// active recording; outside a session they are dropped.
			bus.Handle(events.InteractionCapturedEvent, func(ctx context.Context, event any) error {
				captured, ok := event.(*events.InteractionCaptured)
				if !ok {
					return fmt.Errorf("unexpected event payload %T", event)
				}

				step, err := capture.Encode(captured.Interaction)
				if err != nil || step == nil {
					return nil
				}

				if result := engine.RecordStep(ctx, *step); !result.Success {
					logger.DebugContext(ctx, "Dropped interaction", "reason", result.Message)
				}

				return nil
			})

			if err := bus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to event bus: %w", err)
			}

			if err := engine.Restore(ctx); err != nil {
				return err
			}

			if runQueue := command.String("run-queue"); runQueue != "" {
				trigger, err := queue.NewTrigger(command.String("redis-addr"), "", 0, runQueue, logger)
				if err != nil {
					return err
				}

				err = trigger.Start(ctx, func(ctx context.Context, name string) error {
					_, err := engine.ReplayWorkflow(ctx, name)

					return err
				})
				if err != nil {
					return fmt.Errorf("failed to start run queue trigger: %w", err)
				}

				defer func() {
					if err := trigger.Stop(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to stop run queue trigger", "error", err)
					}
				}()
			}

			var llmClient *llm.Client
			if llmURL := command.String("llm-url"); llmURL != "" {
				llmClient = llm.NewClient(llmURL, command.String("llm-model"), logger)
			}

			templateStore := templates.NewStore(command.String("data-dir"), logger)

			api := NewAPI(logger, store, engine, templateStore, llmClient)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start engine API", "error", err)
			}

			return err
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
