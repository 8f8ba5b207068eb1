package domain

import "errors"

// ============================================================================
// Catalog Errors
// ============================================================================

var (
	// ErrDuplicateSource signals that a source with the same storage key is
	// already registered. Callers treat it as a skip, not a failure.
	ErrDuplicateSource = errors.New("source already registered")
	ErrInvalidLabel    = errors.New("label is not in the configured label set")
	ErrInvalidInput    = errors.New("invalid input")
)

// ============================================================================
// Storage Errors
// ============================================================================

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrObjectNotFound     = errors.New("object not found")
	ErrTransientFetch     = errors.New("source fetch failed")
)

// ============================================================================
// Artifact Errors
// ============================================================================

var (
	ErrArtifactNotFound = errors.New("artifact file not found")
	ErrNoArtifactFound  = errors.New("no artifact found")
	ErrArtifactLoad     = errors.New("artifact could not be decoded")
)

// ============================================================================
// Serving Errors
// ============================================================================

var (
	ErrInvalidImage         = errors.New("invalid image file")
	ErrModelUnavailable     = errors.New("could not load model")
	ErrModelNotLoaded       = errors.New("model not loaded")
	ErrUnexpectedPrediction = errors.New("unexpected prediction output")
)
