// Package templates persists named form templates. Templates feed
// formFill steps and the model-assisted fill planner.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tabwright/tabwright/pkg/models"
)

const documentName = "form-templates.json"

var (
	// ErrTemplateNotFound is returned when no template exists under the
	// requested name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrEmptyTemplate is returned when a template is saved without fields.
	ErrEmptyTemplate = errors.New("template must have at least one field")
)

// Field is one entry of a form template.
type Field struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Template is a named list of form fields.
type Template struct {
	Name      string  `json:"name"`
	Fields    []Field `json:"fields"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Store keeps every template in one JSON document keyed by name, loaded
// and rewritten whole on each operation.
type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{
		path:   filepath.Join(root, documentName),
		logger: logger.With("module", "templates"),
	}
}

// load reads the template document. A missing or unreadable document
// degrades to an empty store.
func (s *Store) load(ctx context.Context) map[string]*Template {
	doc := make(map[string]*Template)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WarnContext(ctx, "Failed to read template document, starting empty", "path", s.path, "error", err)
		}

		return doc
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.WarnContext(ctx, "Template document is corrupt, starting empty", "path", s.path, "error", err)

		return make(map[string]*Template)
	}

	return doc
}

func (s *Store) store(doc map[string]*Template) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal template document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write template document: %w", err)
	}

	return nil
}

// GetAll returns every stored template.
func (s *Store) GetAll(ctx context.Context) ([]*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)

	templates := make([]*Template, 0, len(doc))
	for _, template := range doc {
		templates = append(templates, template)
	}

	return templates, nil
}

// Get returns the named template.
func (s *Store) Get(ctx context.Context, name string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	template, exists := s.load(ctx)[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	return template, nil
}

// Save stores a template under the name, overwriting any existing one.
func (s *Store) Save(ctx context.Context, name string, fields []Field) (*Template, error) {
	if name == "" {
		return nil, errors.New("template name is required")
	}

	if len(fields) == 0 {
		return nil, ErrEmptyTemplate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)

	now := time.Now().UnixMilli()
	template := &Template{Name: name, Fields: fields, CreatedAt: now, UpdatedAt: now}

	if existing, exists := doc[name]; exists {
		template.CreatedAt = existing.CreatedAt
	}

	doc[name] = template

	if err := s.store(doc); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Saved form template", "name", name, "fields", len(fields))

	return template, nil
}

// Update replaces the fields of an existing template.
func (s *Store) Update(ctx context.Context, name string, fields []Field) (*Template, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyTemplate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)

	template, exists := doc[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	template.Fields = fields
	template.UpdatedAt = time.Now().UnixMilli()

	if err := s.store(doc); err != nil {
		return nil, err
	}

	return template, nil
}

// Delete removes the named template.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)

	if _, exists := doc[name]; !exists {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	delete(doc, name)

	if err := s.store(doc); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Deleted form template", "name", name)

	return nil
}

// FormFillFields converts the template into the field set of a formFill
// step.
func (t *Template) FormFillFields() []models.FormField {
	fields := make([]models.FormField, 0, len(t.Fields))
	for _, field := range t.Fields {
		fields = append(fields, models.FormField{Selector: field.Selector, Value: field.Value})
	}

	return fields
}
