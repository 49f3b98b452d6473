// Package messages renders the text the bot publishes from embedded templates.
package messages

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

const templateExt = ".tmpl"

// Template names
const (
	Downtime     = "downtime"
	Announcement = "announcement"
)

// Loader parses templates from the embedded files once and caches them
type Loader struct {
	cache map[string]*template.Template
	mu    sync.RWMutex
}

// NewLoader creates a new template loader
func NewLoader() *Loader {
	return &Loader{
		cache: make(map[string]*template.Template),
	}
}

// Load returns the parsed template called name
func (l *Loader) Load(name string) (*template.Template, error) {
	l.mu.RLock()
	if tmpl, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return tmpl, nil
	}
	l.mu.RUnlock()

	content, err := templatesFS.ReadFile(path.Join("templates", name+templateExt))
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	l.mu.Lock()
	l.cache[name] = tmpl
	l.mu.Unlock()

	return tmpl, nil
}

// Render executes a template. Surrounding whitespace is trimmed so the
// result is a single line.
func (l *Loader) Render(name string, data interface{}) (string, error) {
	tmpl, err := l.Load(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Global loader instance
var defaultLoader = NewLoader()

// Render is a convenience function using the default loader
func Render(name string, data interface{}) (string, error) {
	return defaultLoader.Render(name, data)
}
