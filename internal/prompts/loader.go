// Package prompts renders the LLM prompt templates embedded with the binary.
// Each JSON file maps prompt keys to text/template sources; templates are
// parsed once per file and cached.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

var (
	mu     sync.RWMutex
	parsed = make(map[string]map[string]*template.Template)
)

// Render executes the template stored under filename/key with the given
// data. The filename should not include a path (e.g. "evaluation.json").
func Render(filename, key string, data map[string]string) (string, error) {
	templates, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s/%s: %w", filename, key, err)
	}
	return buf.String(), nil
}

// MustRender renders a prompt, panicking on a missing or broken template.
// Use for prompts the pipeline cannot run without.
func MustRender(filename, key string, data map[string]string) string {
	out, err := Render(filename, key, data)
	if err != nil {
		panic(fmt.Sprintf("failed to render prompt: %v", err))
	}
	return out
}

// List returns all prompt keys defined in a file
func List(filename string) ([]string, error) {
	templates, err := loadFile(filename)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	return keys, nil
}

// loadFile reads a prompt file and parses every template in it, caching the
// parsed set. A file with any unparsable template is rejected whole.
func loadFile(filename string) (map[string]*template.Template, error) {
	mu.RLock()
	templates, ok := parsed[filename]
	mu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var sources map[string]string
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	templates = make(map[string]*template.Template, len(sources))
	for key, source := range sources {
		tmpl, err := template.New(filename + "/" + key).Parse(source)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s/%s: %w", filename, key, err)
		}
		templates[key] = tmpl
	}

	mu.Lock()
	parsed[filename] = templates
	mu.Unlock()

	return templates, nil
}

// ClearCache drops all parsed templates. Useful for testing.
func ClearCache() {
	mu.Lock()
	parsed = make(map[string]map[string]*template.Template)
	mu.Unlock()
}
