// Package queue listens on a Redis list for external run requests and
// starts the requested workflow for each message.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RunCallback starts a run for the named workflow.
type RunCallback func(ctx context.Context, workflowName string) error

// runRequest is the JSON message shape. A non-JSON message is treated
// as a bare workflow name.
type runRequest struct {
	Workflow string `json:"workflow"`
}

type Trigger struct {
	Addr     string
	Password string
	DB       int
	Queue    string

	client   redis.UniversalClient
	callback RunCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrigger(addr, password string, db int, queue string, logger *slog.Logger) (*Trigger, error) {
	if queue == "" {
		return nil, errors.New("run queue name is required")
	}

	if addr == "" {
		addr = "localhost:6379"
	}

	return &Trigger{
		Addr:     addr,
		Password: password,
		DB:       db,
		Queue:    queue,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queue,
		),
	}, nil
}

func (t *Trigger) Start(ctx context.Context, callback RunCallback) error {
	t.logger.InfoContext(ctx, "Starting run queue trigger")
	t.callback = callback

	t.client = redis.NewClient(&redis.Options{
		Addr:     t.Addr,
		Password: t.Password,
		DB:       t.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := t.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	t.logger.InfoContext(ctx, "Connected to Redis", "addr", t.Addr, "db", t.DB)

	t.wg.Add(1)

	go t.consume(ctx)

	return nil
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	t.logger.InfoContext(ctx, "Starting queue consumer", "queue", t.Queue)

	for {
		select {
		case <-t.stopCh:
			t.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := t.processMessage(ctx)
			if err != nil {
				t.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (t *Trigger) processMessage(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, 1*time.Second, t.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	name := parseMessage(result[1])
	if name == "" {
		t.logger.WarnContext(ctx, "Ignoring run request without a workflow name", "message", result[1])

		return nil
	}

	t.logger.InfoContext(ctx, "Received run request", "workflow", name)

	go func() {
		if err := t.callback(ctx, name); err != nil {
			t.logger.ErrorContext(ctx, "Error running workflow for queue request", "workflow", name, "error", err)
		}
	}()

	return nil
}

func parseMessage(message string) string {
	var request runRequest
	if err := json.Unmarshal([]byte(message), &request); err == nil && request.Workflow != "" {
		return request.Workflow
	}

	return strings.TrimSpace(message)
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping run queue trigger")

	close(t.stopCh)
	t.wg.Wait()

	if t.client != nil {
		if err := t.client.Close(); err != nil {
			t.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
