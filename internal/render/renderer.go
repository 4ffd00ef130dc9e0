package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cbroglie/mustache"

	"github.com/MrSnakeDoc/hasu/internal/domain"
)

// Renderer turns a render document into configuration text.
type Renderer interface {
	Render(templatePath string, doc domain.RenderDocument) ([]byte, error)
}

var _ Renderer = (*MustacheRenderer)(nil)

// MustacheRenderer renders mustache templates read from disk.
//
// The document is passed through its JSON form, so templates address the
// JSON keys: {{#Services}}{{Name}} {{Port}} {{Mode}}{{#Nodes}} {{.}}{{/Nodes}}{{/Services}}.
// Double-brace tags are HTML-escaped as mustache requires; use triple
// braces for raw values.
type MustacheRenderer struct{}

// NewMustacheRenderer creates a renderer.
func NewMustacheRenderer() *MustacheRenderer {
	return &MustacheRenderer{}
}

// Render reads templatePath on every call so edits apply on the next pass.
func (r *MustacheRenderer) Render(templatePath string, doc domain.RenderDocument) ([]byte, error) {
	src, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, &domain.TemplateRenderError{Path: templatePath, Err: fmt.Errorf("failed to read template: %w", err)}
	}

	tmpl, err := mustache.ParseString(string(src))
	if err != nil {
		return nil, &domain.TemplateRenderError{Path: templatePath, Err: fmt.Errorf("failed to parse template: %w", err)}
	}

	data, err := Context(doc)
	if err != nil {
		return nil, &domain.TemplateRenderError{Path: templatePath, Err: err}
	}

	out, err := tmpl.Render(data)
	if err != nil {
		return nil, &domain.TemplateRenderError{Path: templatePath, Err: fmt.Errorf("failed to render template: %w", err)}
	}
	return []byte(out), nil
}

// Context converts doc into the generic JSON value handed to templates.
// Numbers stay json.Number so ports print as integers.
func Context(doc domain.RenderDocument) (map[string]any, error) {
	if doc.Services == nil {
		doc.Services = []domain.ServiceEntry{}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return data, nil
}
