// Package prompts renders the named prompt templates used by the
// dispatcher and counts their tokens.
package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// Data is the template input.
type Data struct {
	Input    string
	Source   string
	Language string
	Region   string
	Date     string
}

// Options configure a Library.
type Options struct {
	// Model selects the tokenizer; unknown models use cl100k_base.
	Model string
	// ContextWindow is the model's context size in tokens.
	ContextWindow int
	// Dir optionally holds <name>.tmpl files overriding the defaults.
	Dir      string
	Language string
	Region   string
}

// Library holds parsed templates and a tokenizer.
type Library struct {
	templates     map[Name]*template.Template
	tokenizer     *tiktoken.Tiktoken
	contextWindow int
	language      string
	region        string
	now           func() time.Time
}

// New parses the default templates, replacing any that have an override
// file in opts.Dir.
func New(opts Options) (*Library, error) {
	enc, err := tiktoken.EncodingForModel(opts.Model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}

	lib := &Library{
		templates:     make(map[Name]*template.Template, len(Names)),
		tokenizer:     enc,
		contextWindow: opts.ContextWindow,
		language:      opts.Language,
		region:        opts.Region,
		now:           time.Now,
	}
	if lib.language == "" {
		lib.language = "Urdu"
	}
	if lib.region == "" {
		lib.region = "Pakistan"
	}

	for _, name := range Names {
		body := Defaults[name]
		if opts.Dir != "" {
			data, err := os.ReadFile(filepath.Join(opts.Dir, string(name)+".tmpl"))
			switch {
			case err == nil:
				body = string(data)
			case !errors.Is(err, os.ErrNotExist):
				return nil, fmt.Errorf("read %s template: %w", name, err)
			}
		}
		tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		lib.templates[name] = tmpl
	}
	return lib, nil
}

// Render executes the named template. Language, Region and Date are filled
// from the library when left empty.
func (l *Library) Render(name Name, data Data) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	if data.Language == "" {
		data.Language = l.language
	}
	if data.Region == "" {
		data.Region = l.region
	}
	if data.Date == "" {
		data.Date = l.now().Format("Monday, 2 January 2006")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.String(), nil
}

// CountTokens returns the token count for a string.
func (l *Library) CountTokens(text string) int {
	return len(l.tokenizer.Encode(text, nil, nil))
}

// FitsWindow reports whether a prompt plus the requested output fits the
// model's context window. A zero window always fits.
func (l *Library) FitsWindow(prompt string, maxOutput int) (tokens int, ok bool) {
	tokens = l.CountTokens(prompt)
	if l.contextWindow <= 0 {
		return tokens, true
	}
	return tokens, tokens+maxOutput <= l.contextWindow
}
