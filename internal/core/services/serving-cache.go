package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

const (
	defaultLoadTimeout = 60 * time.Second
	loadKey            = "load"
)

type ServingCacheConfig struct {
	Buckets     []string
	Extension   string
	LoadTimeout time.Duration
}

// ServingCache holds the model used for inference. Every resolve, fetch and
// decode runs as the single flight on loadKey, so cold callers and reloads
// never load in parallel; after the first load reads are a pointer load.
// Reload swaps in a fresh model without touching requests that still hold
// the old one.
type ServingCache struct {
	resolver *ArtifactResolverService
	store    ports.ObjectStore
	decoder  ports.ModelDecoder
	cfg      ServingCacheConfig
	now      func() time.Time

	current  atomic.Pointer[domain.ServingModel]
	group    singleflight.Group
	reloadMu sync.Mutex
}

func NewServingCache(resolver *ArtifactResolverService, store ports.ObjectStore, decoder ports.ModelDecoder, cfg ServingCacheConfig) *ServingCache {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaultLoadTimeout
	}
	return &ServingCache{
		resolver: resolver,
		store:    store,
		decoder:  decoder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Current returns the loaded model or nil.
func (c *ServingCache) Current() *domain.ServingModel {
	return c.current.Load()
}

// loadResult is what a flight on loadKey yields. fresh is false when the
// flight found a model already in place and loaded nothing.
type loadResult struct {
	model *domain.ServingModel
	fresh bool
}

// GetOrLoad returns the loaded model, loading it first if needed. Failures are
// not cached. A caller whose ctx ends stops waiting; the load itself carries on
// for the others under its own timeout.
func (c *ServingCache) GetOrLoad(ctx context.Context) (*domain.ServingModel, error) {
	if m := c.current.Load(); m != nil {
		return m, nil
	}

	res, err := c.wait(ctx, func() (interface{}, error) {
		if m := c.current.Load(); m != nil {
			return loadResult{model: m}, nil
		}
		m, err := c.load()
		if err != nil {
			return nil, err
		}
		// A reload that finished meanwhile holds a newer model.
		if !c.current.CompareAndSwap(nil, m) {
			return loadResult{model: c.current.Load(), fresh: true}, nil
		}
		return loadResult{model: m, fresh: true}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.model, nil
}

// Reload resolves and loads the newest artifact and swaps it in. Reloads are
// serialized, and a reload arriving during a cold load joins that load
// instead of starting a second one. On failure the previous model stays in
// place.
func (c *ServingCache) Reload(ctx context.Context) (*domain.ServingModel, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	prev := c.current.Load()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.wait(ctx, func() (interface{}, error) {
			m, err := c.load()
			if err != nil {
				return nil, err
			}
			c.current.Store(m)
			return loadResult{model: m, fresh: true}, nil
		})
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("model reload failed, keeping previous model")
			}
			return nil, err
		}
		// Joined a flight that only handed back the cached model.
		if !res.fresh {
			continue
		}

		fields := log.Fields{"bucket": res.model.Artifact.Bucket, "key": res.model.Artifact.Key}
		if prev != nil {
			fields["previous_key"] = prev.Artifact.Key
		}
		log.WithFields(fields).Info("model reloaded")
		return res.model, nil
	}
}

// wait runs fn as the single flight on loadKey, or joins the one in progress.
func (c *ServingCache) wait(ctx context.Context, fn func() (interface{}, error)) (loadResult, error) {
	ch := c.group.DoChan(loadKey, fn)
	select {
	case res := <-ch:
		if res.Err != nil {
			return loadResult{}, res.Err
		}
		return res.Val.(loadResult), nil
	case <-ctx.Done():
		return loadResult{}, ctx.Err()
	}
}

func (c *ServingCache) load() (*domain.ServingModel, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
	defer cancel()

	artifact, err := c.resolver.ResolveLatest(ctx, c.cfg.Buckets, c.cfg.Extension)
	if err != nil {
		return nil, err
	}

	data, err := c.fetch(ctx, artifact)
	if err != nil {
		return nil, err
	}

	model, err := c.decoder.Decode(data)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactLoad) {
			return nil, fmt.Errorf("decode %s/%s: %w", artifact.Bucket, artifact.Key, err)
		}
		return nil, fmt.Errorf("decode %s/%s: %w: %w", artifact.Bucket, artifact.Key, domain.ErrArtifactLoad, err)
	}

	log.WithFields(log.Fields{
		"bucket": artifact.Bucket,
		"key":    artifact.Key,
		"size":   len(data),
	}).Info("model loaded")

	return &domain.ServingModel{
		Artifact: *artifact,
		Model:    model,
		LoadedAt: c.now(),
	}, nil
}

func (c *ServingCache) fetch(ctx context.Context, artifact *domain.Artifact) ([]byte, error) {
	body, err := c.store.Get(ctx, artifact.Bucket, artifact.Key)
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s/%s disappeared", domain.ErrNoArtifactFound, artifact.Bucket, artifact.Key)
		}
		return nil, storageErr(fmt.Sprintf("get %s/%s", artifact.Bucket, artifact.Key), err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, storageErr(fmt.Sprintf("read %s/%s", artifact.Bucket, artifact.Key), err)
	}
	return data, nil
}
