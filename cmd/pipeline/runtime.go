package main

import (
	"context"
	"fmt"

	"plant-classifier-pipeline/internal/adapters/secondary/objectstore"
	"plant-classifier-pipeline/internal/adapters/secondary/postgres"
	"plant-classifier-pipeline/internal/config"
	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
	"plant-classifier-pipeline/internal/core/services"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// runtime builds adapters lazily so a stage only connects to what it uses.
type runtime struct {
	cfg *config.Config
}

func (r *runtime) labels() (domain.LabelSet, error) {
	return domain.NewLabelSet(r.cfg.Catalog.Labels)
}

func (r *runtime) store() (ports.ObjectStore, error) {
	store, err := objectstore.NewMinioStore(&r.cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return store, nil
}

// catalog opens the database pool. The returned func closes it.
func (r *runtime) catalog(ctx context.Context) (*services.CatalogService, func(), error) {
	labels, err := r.labels()
	if err != nil {
		return nil, nil, err
	}

	db := r.cfg.Database
	poolCfg, err := pgxpool.ParseConfig(db.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(db.MaxOpenConns)
	poolCfg.MinConns = int32(db.MaxIdleConns)
	poolCfg.MaxConnLifetime = db.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create db pool: %w", domain.ErrStorageUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("%w: ping db: %w", domain.ErrStorageUnavailable, err)
	}
	log.WithFields(log.Fields{"host": db.Host, "db": db.Name}).Debug("database connection established")

	svc := services.NewCatalogService(postgres.NewSourceRepository(pool), labels, r.cfg.Catalog.Extension)
	return svc, pool.Close, nil
}
