// Package manifest reads the YAML list of sources to register in the catalog.
//
// A source entry is either a single item:
//
//	- label: grass
//	  url: https://example.com/grass/00000007.jpg
//	  sequence: 7
//
// or a generator expanding a text/template over an index range:
//
//	- label: dandelion
//	  url_template: 'https://example.com/{{.Label}}/{{printf "%08d" .Index}}.jpg'
//	  start: 0
//	  count: 200
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"plant-classifier-pipeline/internal/core/domain"
)

type Manifest struct {
	Sources []Source `yaml:"sources"`
}

type Source struct {
	Label       string `yaml:"label"`
	URL         string `yaml:"url,omitempty"`
	Sequence    *int   `yaml:"sequence,omitempty"`
	URLTemplate string `yaml:"url_template,omitempty"`
	Start       int    `yaml:"start,omitempty"`
	Count       int    `yaml:"count,omitempty"`
}

type templateData struct {
	Label string
	Index int
}

func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, fmt.Errorf("%w: parse manifest: %v", domain.ErrInvalidInput, err)
	}
	return &m, nil
}

// Inputs expands every entry into registration inputs, in manifest order.
func (m *Manifest) Inputs() ([]domain.SourceInput, error) {
	var out []domain.SourceInput
	for i, src := range m.Sources {
		items, err := src.expand()
		if err != nil {
			return nil, fmt.Errorf("%w: source #%d (%s): %v", domain.ErrInvalidInput, i+1, src.Label, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func (s Source) expand() ([]domain.SourceInput, error) {
	switch {
	case s.URL != "" && s.URLTemplate != "":
		return nil, fmt.Errorf("url and url_template are mutually exclusive")
	case s.URL != "":
		if s.Sequence == nil {
			return nil, fmt.Errorf("url entries need a sequence")
		}
		return []domain.SourceInput{{URL: s.URL, Label: s.Label, Sequence: *s.Sequence}}, nil
	case s.URLTemplate != "":
		return s.expandTemplate()
	default:
		return nil, fmt.Errorf("either url or url_template is required")
	}
}

func (s Source) expandTemplate() ([]domain.SourceInput, error) {
	if s.Count <= 0 {
		return nil, fmt.Errorf("count must be positive")
	}
	if s.Start < 0 {
		return nil, fmt.Errorf("start must not be negative")
	}
	tmpl, err := template.New("url").Option("missingkey=error").Parse(s.URLTemplate)
	if err != nil {
		return nil, err
	}

	out := make([]domain.SourceInput, 0, s.Count)
	var buf bytes.Buffer
	for i := s.Start; i < s.Start+s.Count; i++ {
		buf.Reset()
		if err := tmpl.Execute(&buf, templateData{Label: s.Label, Index: i}); err != nil {
			return nil, err
		}
		out = append(out, domain.SourceInput{URL: buf.String(), Label: s.Label, Sequence: i})
	}
	return out, nil
}
