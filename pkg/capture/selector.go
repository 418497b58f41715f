// Package capture translates raw page-host interaction events into
// normalized, replayable workflow steps.
package capture

import (
	"fmt"
	"strings"
)

// ElementInfo is a capture-time snapshot of a DOM element, carried in
// page-host event payloads so the engine never touches the DOM directly.
type ElementInfo struct {
	Tag       string        `json:"tag"`            // lowercase tag name
	Type      string        `json:"type,omitempty"` // effective input type attribute
	ID        string        `json:"id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Classes   []string      `json:"classes,omitempty"`
	Position  int           `json:"position,omitempty"` // 1-based among same-tag siblings
	Ancestors []ElementInfo `json:"ancestors,omitempty"` // nearest first
}

// formFieldTags are the tags whose name attribute identifies a form field.
var formFieldTags = map[string]bool{
	"input":    true,
	"select":   true,
	"textarea": true,
	"button":   true,
}

// maxAncestorLevels bounds how far the positional fallback climbs.
const maxAncestorLevels = 2

// Resolve derives a stable selector for the element, deterministic given
// the same DOM shape. Priority: id, form-field name, first class, then a
// positional path composed with up to two ancestor levels.
func Resolve(el ElementInfo) string {
	if selector, _ := segment(el); selector != "" {
		return selector
	}

	// Positional fallback: climb ancestors, each resolved with the same
	// priority rules. An id ancestor anchors the path absolutely.
	parts := []string{positional(el)}

	for i, ancestor := range el.Ancestors {
		if i >= maxAncestorLevels {
			break
		}

		selector, absolute := segment(ancestor)
		if selector == "" {
			selector = positional(ancestor)
		}

		parts = append([]string{selector}, parts...)

		if absolute {
			break
		}
	}

	return strings.Join(parts, " > ")
}

// segment resolves one element with the non-positional priority rules.
// The second return value reports whether the selector is absolute (an
// id match), meaning no ancestor context is needed.
func segment(el ElementInfo) (string, bool) {
	if el.ID != "" {
		return "#" + el.ID, true
	}

	if el.Name != "" && formFieldTags[el.Tag] {
		return fmt.Sprintf("%s[name=%q]", el.Tag, el.Name), false
	}

	if len(el.Classes) > 0 && el.Classes[0] != "" {
		return el.Tag + "." + el.Classes[0], false
	}

	return "", false
}

func positional(el ElementInfo) string {
	position := el.Position
	if position < 1 {
		position = 1
	}

	return fmt.Sprintf("%s:nth-of-type(%d)", el.Tag, position)
}
