// Package models defines the core domain models for browser workflow recording and replay.
package models

import (
	"errors"
	"fmt"
)

// StepType identifies the kind of browser interaction a step performs.
type StepType string

const (
	StepNavigation     StepType = "navigation"
	StepClick          StepType = "click"
	StepInput          StepType = "input"
	StepSelect         StepType = "select"
	StepCheckbox       StepType = "checkbox"
	StepRadio          StepType = "radio"
	StepWait           StepType = "wait"
	StepWaitForElement StepType = "waitForElement"
	StepFormFill       StepType = "formFill"
	StepSubmit         StepType = "submit"
)

var knownStepTypes = map[StepType]bool{
	StepNavigation:     true,
	StepClick:          true,
	StepInput:          true,
	StepSelect:         true,
	StepCheckbox:       true,
	StepRadio:          true,
	StepWait:           true,
	StepWaitForElement: true,
	StepFormFill:       true,
	StepSubmit:         true,
}

// KnownStepType reports whether t is one of the enumerated step kinds.
func KnownStepType(t StepType) bool {
	return knownStepTypes[t]
}

// FormField is one field assignment inside a formFill step. A non-nil
// Checked marks the field as a checkbox or radio; otherwise Value is
// applied as text or option value.
type FormField struct {
	Selector string `json:"selector" validate:"required"`
	Value    string `json:"value,omitempty"`
	Checked  *bool  `json:"checked,omitempty"`
}

// Step is one captured or replayable browser action. The payload fields
// are type-specific: Value carries the URL for navigation, the text for
// input, and the option value for select; Checked carries the boolean
// state for checkbox and radio; DurationMS paces wait steps; Fields and
// Submit describe a formFill.
type Step struct {
	Type      StepType    `json:"type"                validate:"required"`
	Selector  string      `json:"selector,omitempty"`
	Value     string      `json:"value,omitempty"`
	Checked   *bool       `json:"checked,omitempty"`
	DurationMS int64      `json:"durationMs,omitempty"`
	TimeoutMS  int64      `json:"timeoutMs,omitempty"`
	Fields    []FormField `json:"fields,omitempty"`
	Submit    string      `json:"submit,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

var (
	// ErrUnknownStepType is returned when a step's type is not one of the
	// enumerated kinds.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrInvalidStep is returned when a step is missing a payload its type requires.
	ErrInvalidStep = errors.New("invalid step")
)

// Validate checks the step's type and the payload fields that type requires.
func (s *Step) Validate() error {
	if !KnownStepType(s.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownStepType, s.Type)
	}

	switch s.Type {
	case StepNavigation:
		if s.Value == "" {
			return fmt.Errorf("%w: navigation step requires a url value", ErrInvalidStep)
		}
	case StepClick, StepInput, StepSelect, StepSubmit, StepWaitForElement:
		if s.Selector == "" {
			return fmt.Errorf("%w: %s step requires a selector", ErrInvalidStep, s.Type)
		}
	case StepCheckbox, StepRadio:
		if s.Selector == "" {
			return fmt.Errorf("%w: %s step requires a selector", ErrInvalidStep, s.Type)
		}

		if s.Checked == nil {
			return fmt.Errorf("%w: %s step requires a checked state", ErrInvalidStep, s.Type)
		}
	case StepWait:
		if s.DurationMS <= 0 {
			return fmt.Errorf("%w: wait step requires a positive duration", ErrInvalidStep)
		}
	case StepFormFill:
		if len(s.Fields) == 0 {
			return fmt.Errorf("%w: formFill step requires at least one field", ErrInvalidStep)
		}

		for i, field := range s.Fields {
			if field.Selector == "" {
				return fmt.Errorf("%w: formFill field %d requires a selector", ErrInvalidStep, i)
			}
		}
	}

	return nil
}
