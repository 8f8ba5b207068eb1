package ports

import "context"

// ReloadTarget is one serving process whose cache can be reloaded.
type ReloadTarget struct {
	Name string
	URL  string
}

// TargetDiscovery lists the serving processes to notify on reload.
type TargetDiscovery interface {
	Targets(ctx context.Context) ([]ReloadTarget, error)
}

type ReloadClient interface {
	Reload(ctx context.Context, target ReloadTarget) error
}
