// Package llm talks to a locally hosted model server (Ollama API) to
// analyze forms and plan automated fills. The engine never depends on
// this package; it is wired only through the API surface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "deepseek-coder:8b"

	defaultTimeout = 60 * time.Second
)

var (
	// ErrUnavailable is returned when the model server cannot be reached.
	ErrUnavailable = errors.New("model server unavailable")

	// ErrBadModelOutput is returned when the model's reply is not the
	// expected JSON shape.
	ErrBadModelOutput = errors.New("model returned unusable output")
)

// FieldValidation carries the validation hints the model inferred for a
// detected field.
type FieldValidation struct {
	Required  bool   `json:"required"`
	Pattern   string `json:"pattern,omitempty"`
	MinLength int    `json:"minLength,omitempty"`
	MaxLength int    `json:"maxLength,omitempty"`
}

// DetectedField is one form field found during analysis.
type DetectedField struct {
	Name         string          `json:"name"`
	Selector     string          `json:"selector"`
	Type         string          `json:"type"`
	DefaultValue string          `json:"defaultValue,omitempty"`
	Validation   FieldValidation `json:"validation"`
	Description  string          `json:"description,omitempty"`
}

// Analysis is the model's view of a page's form.
type Analysis struct {
	FormName string          `json:"formName"`
	Fields   []DetectedField `json:"fields"`
}

// Action is one step of a fill plan.
type Action struct {
	Selector    string `json:"selector"`
	Script      string `json:"script"`
	Description string `json:"description,omitempty"`
}

// FillPlan is the ordered action list for filling a form.
type FillPlan struct {
	Actions []Action `json:"actions"`
}

type Client struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint, model string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	if model == "" {
		model = defaultModel
	}

	return &Client{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   logger.With("module", "llm", "model", model),
	}
}

// Available reports whether the model server answers at all.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}

	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Analyze asks the model to describe the form on the given page.
func (c *Client) Analyze(ctx context.Context, pageContent, url string) (*Analysis, error) {
	prompt := analyzePrompt(pageContent, url)

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}

	if len(analysis.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields detected", ErrBadModelOutput)
	}

	c.logger.InfoContext(ctx, "Analyzed form", "url", url, "fields", len(analysis.Fields))

	return &analysis, nil
}

// Plan asks the model for an action list that fills the page's form
// from the given template.
func (c *Client) Plan(ctx context.Context, template any, pageContent, url string) (*FillPlan, error) {
	templateJSON, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}

	raw, err := c.generate(ctx, planPrompt(string(templateJSON), pageContent, url))
	if err != nil {
		return nil, err
	}

	var plan FillPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}

	if len(plan.Actions) == 0 {
		return nil, fmt.Errorf("%w: empty fill plan", ErrBadModelOutput)
	}

	c.logger.InfoContext(ctx, "Planned form fill", "url", url, "actions", len(plan.Actions))

	return &plan, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// generate runs one non-streaming completion and returns the model's
// raw reply text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: 0.1, NumPredict: 1000},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, data)
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}

	return envelope.Response, nil
}

func analyzePrompt(pageContent, url string) string {
	return fmt.Sprintf(`You are an expert in form analysis and HTML. Analyze this form and extract all fields with their details.

HTML Content:
%s

URL: %s

Provide a detailed analysis in JSON format with:
{
  "formName": "descriptive name based on form purpose",
  "fields": [
    {
      "name": "field identifier",
      "selector": "precise CSS selector",
      "type": "field type",
      "defaultValue": "default value if any",
      "validation": {
        "required": boolean,
        "pattern": "regex pattern if applicable",
        "minLength": number if applicable,
        "maxLength": number if applicable
      },
      "description": "detailed field purpose"
    }
  ]
}

Focus on accuracy and include all relevant validation rules.`, pageContent, url)
}

func planPrompt(templateJSON, pageContent, url string) string {
	return fmt.Sprintf(`You are an expert in form automation. Plan how to fill this form based on the template and current page content.

Template:
%s

Current Page Content:
%s

URL: %s

Provide a detailed plan in JSON format with:
{
  "actions": [
    {
      "selector": "precise CSS selector",
      "script": "JavaScript code to execute",
      "description": "what this action does"
    }
  ]
}

Ensure the JavaScript code:
1. Handles different input types correctly
2. Triggers appropriate events (input, change)
3. Validates input before setting
4. Uses proper error handling`, templateJSON, pageContent, url)
}
