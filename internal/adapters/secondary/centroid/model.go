// Package centroid implements the bundled artifact format: a nearest-centroid
// classifier over normalized RGB histograms.
package centroid

import (
	"encoding/json"
	"fmt"
	"image"
	"math"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

const (
	Format             = "centroid/v1"
	defaultTemperature = 10.0
)

type Class struct {
	Label    domain.Label `json:"label"`
	Centroid []float64    `json:"centroid"`
}

// Model is immutable after Decode and safe for concurrent use.
type Model struct {
	Format      string  `json:"format"`
	Size        int     `json:"size"`
	Bins        int     `json:"bins"`
	Temperature float64 `json:"temperature,omitempty"`
	Classes     []Class `json:"classes"`
}

var _ domain.Model = (*Model)(nil)

func (m *Model) Labels() []domain.Label {
	out := make([]domain.Label, len(m.Classes))
	for i, c := range m.Classes {
		out[i] = c.Label
	}
	return out
}

// Predict scores the image against every centroid with a softmax over
// negative Euclidean distances.
func (m *Model) Predict(img image.Image) (*domain.Prediction, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}
	feat := Features(img, m.Size, m.Bins)

	temp := m.Temperature
	if temp <= 0 {
		temp = defaultTemperature
	}

	logits := make([]float64, len(m.Classes))
	maxLogit := math.Inf(-1)
	for i, c := range m.Classes {
		logits[i] = -temp * distance(feat, c.Centroid)
		maxLogit = math.Max(maxLogit, logits[i])
	}

	var sum float64
	for i := range logits {
		logits[i] = math.Exp(logits[i] - maxLogit)
		sum += logits[i]
	}

	pred := &domain.Prediction{Scores: make(map[domain.Label]float64, len(m.Classes))}
	for i, c := range m.Classes {
		p := logits[i] / sum
		pred.Scores[c.Label] = p
		if p > pred.Probability {
			pred.Label = c.Label
			pred.Probability = p
		}
	}
	return pred, nil
}

// Features samples a size x size grid of the image and returns three
// concatenated per-channel histograms of bins buckets, each summing to 1.
func Features(img image.Image, size, bins int) []float64 {
	b := img.Bounds()
	feat := make([]float64, 3*bins)
	if size <= 0 || bins <= 0 || b.Empty() {
		return feat
	}

	for y := 0; y < size; y++ {
		sy := b.Min.Y + y*b.Dy()/size
		for x := 0; x < size; x++ {
			sx := b.Min.X + x*b.Dx()/size
			r, g, bl, _ := img.At(sx, sy).RGBA()
			feat[bucket(r, bins)]++
			feat[bins+bucket(g, bins)]++
			feat[2*bins+bucket(bl, bins)]++
		}
	}

	n := float64(size * size)
	for i := range feat {
		feat[i] /= n
	}
	return feat
}

func bucket(v uint32, bins int) int {
	i := int(v) * bins / 0x10000
	if i >= bins {
		i = bins - 1
	}
	return i
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Decoder reads the JSON artifact format.
type Decoder struct{}

var _ ports.ModelDecoder = Decoder{}

func (Decoder) Decode(data []byte) (domain.Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactLoad, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactLoad, err)
	}
	return &m, nil
}

// Encode serializes m in the format Decode reads.
func Encode(m *Model) ([]byte, error) {
	if m.Format == "" {
		m.Format = Format
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func (m *Model) validate() error {
	if m.Format != Format {
		return fmt.Errorf("unsupported format %q", m.Format)
	}
	if m.Size <= 0 || m.Bins <= 0 {
		return fmt.Errorf("size and bins must be positive")
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("no classes")
	}
	seen := make(map[domain.Label]bool, len(m.Classes))
	for _, c := range m.Classes {
		if c.Label == "" || seen[c.Label] {
			return fmt.Errorf("empty or duplicate label %q", c.Label)
		}
		seen[c.Label] = true
		if len(c.Centroid) != 3*m.Bins {
			return fmt.Errorf("class %q: centroid has %d values, want %d", c.Label, len(c.Centroid), 3*m.Bins)
		}
	}
	return nil
}
