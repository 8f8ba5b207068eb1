package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceRecord is one catalog entry describing an origin item to mirror.
// Records are append-only.
type SourceRecord struct {
	ID         int64     `json:"id"`
	SourceURL  string    `json:"source_url"`
	StorageKey string    `json:"storage_key"`
	Label      Label     `json:"label"`
	CreatedAt  time.Time `json:"created_at"`
}

// SourceInput is a registration request before validation.
type SourceInput struct {
	URL      string
	Label    string
	Sequence int
}

// StorageKey derives the object key for a source: {label}/{sequence:08d}.{ext}.
func StorageKey(label Label, sequence int, ext string) string {
	return fmt.Sprintf("%s/%08d.%s", label, sequence, strings.TrimPrefix(ext, "."))
}

// LabelFromKey returns the first path segment of an object key.
func LabelFromKey(key string) (Label, bool) {
	i := strings.IndexByte(key, '/')
	if i <= 0 {
		return "", false
	}
	return Label(strings.ToLower(key[:i])), true
}

type RegisterReport struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}
