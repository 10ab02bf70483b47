// Package prompts holds the LLM prompt templates. Each embedded JSON file maps
// a key to a template whose placeholders are written {{.Name}}.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var files embed.FS

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9_]*)\}\}`)

// Template is one prompt and the placeholder names it uses, in order of
// first appearance
type Template struct {
	Key    string
	Text   string
	Fields []string
}

// Set is the parsed content of one prompt file
type Set struct {
	File      string
	templates map[string]Template
}

var (
	loadedMu sync.Mutex
	loaded   = map[string]*Set{}
)

// Load parses an embedded prompt file. Parsed files are kept for the life of
// the process.
func Load(file string) (*Set, error) {
	loadedMu.Lock()
	defer loadedMu.Unlock()
	if s, ok := loaded[file]; ok {
		return s, nil
	}

	raw, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	var texts map[string]string
	if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}

	s := &Set{File: file, templates: make(map[string]Template, len(texts))}
	for key, text := range texts {
		s.templates[key] = Template{Key: key, Text: text, Fields: fieldsOf(text)}
	}
	loaded[file] = s
	return s, nil
}

func fieldsOf(text string) []string {
	seen := map[string]bool{}
	var fields []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			fields = append(fields, m[1])
		}
	}
	return fields
}

// Template returns the template stored under key
func (s *Set) Template(key string) (Template, error) {
	t, ok := s.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("prompt key %q not found in %s", key, s.File)
	}
	return t, nil
}

// Keys lists the template keys in sorted order
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.templates))
	for key := range s.templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Fill substitutes data into the template. Every placeholder needs a value;
// keys of data the template does not use are ignored. Substituted values are
// not expanded again.
func (t Template) Fill(data map[string]string) (string, error) {
	var missing []string
	for _, f := range t.Fields {
		if _, ok := data[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s: no value for %s", t.Key, strings.Join(missing, ", "))
	}
	return placeholder.ReplaceAllStringFunc(t.Text, func(ph string) string {
		return data[placeholder.FindStringSubmatch(ph)[1]]
	}), nil
}

// Get returns the unfilled text of file/key
func Get(file, key string) (string, error) {
	s, err := Load(file)
	if err != nil {
		return "", err
	}
	t, err := s.Template(key)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

// Render fills file/key with data
func Render(file, key string, data map[string]string) (string, error) {
	s, err := Load(file)
	if err != nil {
		return "", err
	}
	t, err := s.Template(key)
	if err != nil {
		return "", err
	}
	return t.Fill(data)
}
