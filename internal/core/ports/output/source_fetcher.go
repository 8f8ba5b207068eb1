package ports

import "context"

type FetchedSource struct {
	Body        []byte
	ContentType string
}

// SourceFetcher downloads an origin item. Failures wrap domain.ErrTransientFetch.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedSource, error)
}
