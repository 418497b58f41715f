// Package events defines the event types flowing between the page host,
// the recording pipeline, and run observers.
package events

import (
	"time"

	"github.com/tabwright/tabwright/pkg/capture"
)

type EventType string

// Topic is the message-bus topic all engine events travel on.
const Topic = "tabwright.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// InteractionCapturedEvent carries one raw page-host interaction
	// toward the recording session.
	InteractionCapturedEvent EventType = "interaction.captured"

	// Run lifecycle events.
	RunStartedEvent  EventType = "run.started"
	RunStepEvent     EventType = "run.step"
	RunFinishedEvent EventType = "run.finished"
)

// Event is implemented by every message published on the bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionCaptured is one raw interaction observed by the page host.
type InteractionCaptured struct {
	BaseEvent

	Interaction capture.RawEvent `json:"interaction"`
}

func (e InteractionCaptured) GetType() EventType {
	return InteractionCapturedEvent
}

// RunStarted announces that a workflow replay has begun.
type RunStarted struct {
	BaseEvent

	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	TotalSteps   int    `json:"total_steps"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

// RunStep reports the outcome of one replayed step. Error is empty for
// a successful step; per-step failures never abort the run.
type RunStep struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	StepIndex  int    `json:"step_index"`
	StepType   string `json:"step_type"`
	Error      string `json:"error,omitempty"`
}

func (e RunStep) GetType() EventType {
	return RunStepEvent
}

// RunFinished announces that a workflow replay has consumed every step.
type RunFinished struct {
	BaseEvent

	WorkflowID  string        `json:"workflow_id"`
	TotalSteps  int           `json:"total_steps"`
	FailedSteps int           `json:"failed_steps"`
	Duration    time.Duration `json:"duration"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}
