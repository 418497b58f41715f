package capture

import (
	"fmt"
	"strings"

	"github.com/tabwright/tabwright/pkg/models"
)

// EventKind is the category of a raw page-host event.
type EventKind string

const (
	EventNavigation EventKind = "navigation"
	EventClick      EventKind = "click"
	EventChange     EventKind = "change" // input/change on a form control
	EventSubmit     EventKind = "submit"
	EventFormFill   EventKind = "formFill"
)

// RawEvent is one interaction event as emitted by the page host.
type RawEvent struct {
	Kind    EventKind          `json:"kind"`
	URL     string             `json:"url,omitempty"`
	Element *ElementInfo       `json:"element,omitempty"`
	Value   string             `json:"value,omitempty"`
	Checked bool               `json:"checked,omitempty"`
	Fields  []models.FormField `json:"fields,omitempty"`
	Submit  string             `json:"submit,omitempty"`
}

// clickableTags are the tags whose clicks are worth recording. Checkbox
// and radio clicks surface as change events instead, so they are not
// captured here a second time.
var clickableTags = map[string]bool{
	"a":      true,
	"button": true,
}

// Encode normalizes a raw page-host event into a replayable step.
// Events outside the recognized categories (clicks on non-interactive
// elements, unknown kinds) are dropped by returning nil, nil.
func Encode(event RawEvent) (*models.Step, error) {
	switch event.Kind {
	case EventNavigation:
		if event.URL == "" {
			return nil, fmt.Errorf("%w: navigation event without url", models.ErrInvalidStep)
		}

		return &models.Step{Type: models.StepNavigation, Value: event.URL}, nil

	case EventClick:
		if event.Element == nil || !clickable(*event.Element) {
			return nil, nil
		}

		return &models.Step{Type: models.StepClick, Selector: Resolve(*event.Element)}, nil

	case EventChange:
		if event.Element == nil {
			return nil, nil
		}

		return encodeChange(event), nil

	case EventSubmit:
		if event.Element == nil {
			return nil, nil
		}

		return &models.Step{Type: models.StepSubmit, Selector: Resolve(*event.Element)}, nil

	case EventFormFill:
		if len(event.Fields) == 0 {
			return nil, fmt.Errorf("%w: formFill event without fields", models.ErrInvalidStep)
		}

		return &models.Step{Type: models.StepFormFill, Fields: event.Fields, Submit: event.Submit}, nil

	default:
		return nil, nil
	}
}

// encodeChange classifies a form-control change by the element's
// effective type, not its raw tag name: checkbox and radio capture the
// checked state, select captures the chosen option value, and every
// other input-like control captures its text value.
func encodeChange(event RawEvent) *models.Step {
	el := *event.Element
	selector := Resolve(el)
	checked := event.Checked

	switch {
	case el.Type == "checkbox":
		return &models.Step{Type: models.StepCheckbox, Selector: selector, Checked: &checked}
	case el.Type == "radio":
		return &models.Step{Type: models.StepRadio, Selector: selector, Checked: &checked}
	case el.Tag == "select":
		return &models.Step{Type: models.StepSelect, Selector: selector, Value: event.Value}
	case el.Tag == "input" || el.Tag == "textarea":
		return &models.Step{Type: models.StepInput, Selector: selector, Value: event.Value}
	default:
		return nil
	}
}

func clickable(el ElementInfo) bool {
	if clickableTags[el.Tag] {
		return true
	}

	return el.Tag == "input" && (el.Type == "submit" || el.Type == "button")
}

// Decode renders a step as a short human-readable description. It is the
// display/debugging inverse of Encode; replay consumes steps directly.
func Decode(step models.Step) string {
	switch step.Type {
	case models.StepNavigation:
		return "navigate to " + step.Value
	case models.StepClick:
		return "click " + step.Selector
	case models.StepInput:
		return fmt.Sprintf("type %q into %s", step.Value, step.Selector)
	case models.StepSelect:
		return fmt.Sprintf("select %q in %s", step.Value, step.Selector)
	case models.StepCheckbox, models.StepRadio:
		state := "uncheck"
		if step.Checked != nil && *step.Checked {
			state = "check"
		}

		return state + " " + step.Selector
	case models.StepWait:
		return fmt.Sprintf("wait %dms", step.DurationMS)
	case models.StepWaitForElement:
		return "wait for " + step.Selector
	case models.StepFormFill:
		selectors := make([]string, 0, len(step.Fields))
		for _, field := range step.Fields {
			selectors = append(selectors, field.Selector)
		}

		return "fill form fields " + strings.Join(selectors, ", ")
	case models.StepSubmit:
		return "submit " + step.Selector
	default:
		return "unknown step " + string(step.Type)
	}
}
