package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Label is one member of the closed set of classes a source can belong to.
type Label string

func (l Label) String() string { return string(l) }

var labelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// DefaultLabels is the label set used when none is configured.
var DefaultLabels = []string{"dandelion", "grass"}

// LabelSet is the closed set of labels accepted at the catalog boundary.
type LabelSet struct {
	labels map[Label]struct{}
}

// NewLabelSet builds a set from raw names. Names are trimmed and lowercased
// and must be usable both as a path segment and inside a SQL literal.
func NewLabelSet(names []string) (LabelSet, error) {
	set := LabelSet{labels: make(map[Label]struct{}, len(names))}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if !labelPattern.MatchString(n) {
			return LabelSet{}, fmt.Errorf("%w: label %q", ErrInvalidInput, n)
		}
		set.labels[Label(n)] = struct{}{}
	}
	if len(set.labels) == 0 {
		return LabelSet{}, fmt.Errorf("%w: empty label set", ErrInvalidInput)
	}
	return set, nil
}

// MustLabelSet is NewLabelSet for static inputs.
func MustLabelSet(names ...string) LabelSet {
	set, err := NewLabelSet(names)
	if err != nil {
		panic(err)
	}
	return set
}

// Parse returns the label for s or ErrInvalidLabel.
func (s LabelSet) Parse(raw string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Contains(l) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, raw)
	}
	return l, nil
}

func (s LabelSet) Contains(l Label) bool {
	_, ok := s.labels[l]
	return ok
}

// Labels returns the members sorted by name.
func (s LabelSet) Labels() []Label {
	out := make([]Label, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s LabelSet) Len() int { return len(s.labels) }
