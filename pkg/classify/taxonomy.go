// Package classify wraps the pre-trained breath-sound classifier and its
// label taxonomy.
//
// The taxonomy and the model artifact are loaded once at startup and are
// read-only afterwards; both are safe to share across concurrent
// inference calls. The taxonomy's ordering defines the index-to-label
// mapping of the model's output layer and must match the ordering used
// when the artifact was trained.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// Taxonomy is the ordered set of class names the classifier was trained
// to distinguish. Immutable once constructed.
type Taxonomy struct {
	labels []string
	index  map[string]int
}

// NewTaxonomy builds a taxonomy from an ordered label list.
func NewTaxonomy(labels []string) (*Taxonomy, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("classify: empty taxonomy")
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("classify: empty label at index %d", i)
		}
		if _, dup := index[l]; dup {
			return nil, fmt.Errorf("classify: duplicate label %q", l)
		}
		index[l] = i
	}
	return &Taxonomy{labels: append([]string(nil), labels...), index: index}, nil
}

// LoadTaxonomy reads an ordered JSON array of class names, e.g.
//
//	["bronchitis", "healthy_breath", "healthy_voice"]
//
// The file is the Go-side counterpart of the label encoder artifact
// produced during training; its order must agree with the model's
// output layer.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: read taxonomy: %w", err)
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("classify: parse taxonomy: %w", err)
	}
	return NewTaxonomy(labels)
}

// Len returns the number of classes.
func (t *Taxonomy) Len() int { return len(t.labels) }

// Label returns the class name at index i.
func (t *Taxonomy) Label(i int) (string, error) {
	if i < 0 || i >= len(t.labels) {
		return "", fmt.Errorf("classify: label index %d out of range [0,%d)", i, len(t.labels))
	}
	return t.labels[i], nil
}

// Index returns the position of a class name, or false if absent.
func (t *Taxonomy) Index(label string) (int, bool) {
	i, ok := t.index[label]
	return i, ok
}

// Labels returns a copy of the ordered class names.
func (t *Taxonomy) Labels() []string {
	return append([]string(nil), t.labels...)
}
