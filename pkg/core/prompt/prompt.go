// Package prompt is the centralized prompt library for LLM interactions.
// Templates are Go text/templates compiled at init; callers render them with
// typed context structs so a prompt change never touches calling code.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"
)

var registry = map[string]*template.Template{}

func register(id string, body string) {
	registry[id] = template.Must(template.New(id).Parse(body))
}

// Render executes a registered template with the given context.
func Render(id string, ctx interface{}) (string, error) {
	tmpl, ok := registry[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", id)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", id, err)
	}
	return buf.String(), nil
}
