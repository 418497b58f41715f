package file

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tabwright/tabwright/pkg/models"
	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// documentSchema validates an imported workflow document before it is
// merged into the store. It mirrors the persisted layout: a mapping of
// workflow name to workflow record.
const documentSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["name", "steps"],
    "properties": {
      "id": {"type": "string"},
      "name": {"type": "string", "minLength": 1},
      "createdAt": {"type": "integer"},
      "lastRun": {"type": ["integer", "null"]},
      "steps": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["type"],
          "properties": {
            "type": {
              "type": "string",
              "enum": ["navigation", "click", "input", "select", "checkbox", "radio", "wait", "waitForElement", "formFill", "submit"]
            },
            "selector": {"type": "string"},
            "value": {"type": "string"},
            "checked": {"type": "boolean"},
            "durationMs": {"type": "integer"},
            "timeoutMs": {"type": "integer"},
            "timestamp": {"type": "integer"}
          }
        }
      },
      "schedule": {"type": "object"}
    }
  }
}`

// Import validates a workflow document against the schema and merges its
// entries into the store. Imported entries overwrite same-named workflows,
// matching the store's save semantics.
func (fp *Persistence) Import(ctx context.Context, data []byte) (int, error) {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	dataLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return 0, persistence.NewWorkflowError("Import", "", fmt.Errorf("%w: %v", persistence.ErrInvalidDocument, err))
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return 0, persistence.NewWorkflowError("Import", "",
			fmt.Errorf("%w: %s", persistence.ErrInvalidDocument, strings.Join(details, "; ")))
	}

	var imported map[string]*models.Workflow
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, persistence.NewWorkflowError("Import", "", fmt.Errorf("%w: %v", persistence.ErrInvalidDocument, err))
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflows := fp.load(ctx)
	for name, workflow := range imported {
		workflow.Name = name
		workflows[name] = workflow
	}

	if err := fp.store(workflows); err != nil {
		return 0, persistence.NewWorkflowError("Import", "", err)
	}

	return len(imported), nil
}

// Export returns the pretty-printed workflow document.
func (fp *Persistence) Export(ctx context.Context) ([]byte, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	data, err := json.MarshalIndent(fp.load(ctx), "", "  ")
	if err != nil {
		return nil, persistence.NewWorkflowError("Export", "", err)
	}

	return data, nil
}
