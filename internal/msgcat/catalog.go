package msgcat

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

// Catalog holds the user-facing strings pushed over the error channel.
// Defaults are embedded; an optional override directory lets operators
// reword messages without a rebuild. Values render through text/template.
type Catalog struct {
	mu   sync.RWMutex
	data map[string]string // flattened dot-keys → template text
}

// New loads the embedded defaults and then applies overrides from dir if
// provided.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{data: make(map[string]string)}
	raw, err := fs.ReadFile(defaultFiles, "messages.en.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	if err := c.applyYAML(raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read override dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml") {
			files = append(files, n)
		}
	}
	sort.Strings(files)
	for _, n := range files {
		raw, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return fmt.Errorf("read override %s: %w", n, err)
		}
		if err := c.applyYAML(raw); err != nil {
			return fmt.Errorf("apply override %s: %w", n, err)
		}
	}
	return nil
}

func (c *Catalog) applyYAML(raw []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse messages yaml: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	flatten("", doc, c.data)
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case string:
			out[key] = t
		default:
			out[key] = fmt.Sprintf("%v", t)
		}
	}
}

// Render looks up key and executes it as a template against data. Unknown
// keys and render failures fall back to the key itself so a missing entry
// never silences an error push.
func (c *Catalog) Render(key string, data any) string {
	c.mu.RLock()
	text, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return key
	}
	tpl, err := template.New(key).Parse(text)
	if err != nil {
		return key
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return key
	}
	return b.String()
}
