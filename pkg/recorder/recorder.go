// Package recorder implements the single-active recording session that
// buffers captured steps until they are persisted as a workflow.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
)

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("already recording a workflow")

	// ErrNotRecording is returned by RecordStep and Stop with no active session.
	ErrNotRecording = errors.New("no active recording")
)

// Recorder is the process-wide recording session state machine:
// Idle -> Recording -> Idle. Only one recording can be in flight at a
// time, since there is exactly one page host being observed.
type Recorder struct {
	store  persistence.Persistence
	logger *slog.Logger

	mu          sync.Mutex
	isRecording bool
	name        string
	buffer      []models.Step
	lastStamp   int64
}

// NewRecorder creates an idle recorder backed by the given store.
func NewRecorder(store persistence.Persistence, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With("module", "recorder"),
	}
}

// Start begins a new recording session. An empty name is replaced with a
// generated one derived from the current time.
func (r *Recorder) Start(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording {
		return "", ErrAlreadyRecording
	}

	if name == "" {
		name = "Workflow " + time.Now().Format("2006-01-02 15:04:05")
	}

	r.isRecording = true
	r.name = name
	r.buffer = nil
	r.lastStamp = 0

	r.logger.Info("Started recording workflow", "name", name)

	return name, nil
}

// RecordStep validates and appends a step to the session buffer with a
// server-assigned timestamp, monotonic within the session.
func (r *Recorder) RecordStep(step models.Step) error {
	if err := step.Validate(); err != nil {
		return fmt.Errorf("rejecting step: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording {
		return ErrNotRecording
	}

	stamp := time.Now().UnixMilli()
	if stamp <= r.lastStamp {
		stamp = r.lastStamp + 1
	}

	r.lastStamp = stamp
	step.Timestamp = stamp
	r.buffer = append(r.buffer, step)

	r.logger.Debug("Recorded step", "type", step.Type, "buffered", len(r.buffer))

	return nil
}

// Stop ends the session and persists the buffered steps as a workflow.
// An empty buffer is an error and nothing is written; the session
// returns to idle either way.
func (r *Recorder) Stop(ctx context.Context) (*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording {
		return nil, ErrNotRecording
	}

	name := r.name
	buffer := r.buffer

	r.isRecording = false
	r.name = ""
	r.buffer = nil

	if len(buffer) == 0 {
		r.logger.Info("Discarding empty recording", "name", name)

		return nil, persistence.NewWorkflowError("Stop", name, persistence.ErrEmptyWorkflow)
	}

	workflow, err := r.store.Save(ctx, name, buffer)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Saved recorded workflow", "name", name, "steps", len(workflow.Steps))

	return workflow, nil
}

// IsRecording reports whether a session is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.isRecording
}

// Name returns the in-progress workflow's intended name, or empty when idle.
func (r *Recorder) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.name
}

// BufferedSteps returns how many steps the active session has captured.
func (r *Recorder) BufferedSteps() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.buffer)
}
