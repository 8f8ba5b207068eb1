package domain

import "time"

// StoredObject describes an object held by the object store.
type StoredObject struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Artifact is a published model file. There is no version field; recency
// comes from LastModified only.
type Artifact struct {
	StoredObject
}

// NewerThan orders artifacts by LastModified, then key, then bucket.
// The key and bucket comparisons make equal timestamps resolve the same
// way on every scan.
func (a *Artifact) NewerThan(b *Artifact) bool {
	if b == nil {
		return true
	}
	if !a.LastModified.Equal(b.LastModified) {
		return a.LastModified.After(b.LastModified)
	}
	if a.Key != b.Key {
		return a.Key > b.Key
	}
	return a.Bucket > b.Bucket
}

type SyncReport struct {
	Total      int      `json:"total"`
	Uploaded   int      `json:"uploaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	FailedKeys []string `json:"failed_keys,omitempty"`
}

type HydrateReport struct {
	Root       string `json:"root"`
	Downloaded int    `json:"downloaded"`
	Ignored    int    `json:"ignored"`
}
