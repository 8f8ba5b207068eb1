package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

type sourceRepo struct {
	pool *pgxpool.Pool
}

// NewSourceRepository creates the catalog repository backed by the source_record table.
func NewSourceRepository(pool *pgxpool.Pool) ports.SourceRepository {
	return &sourceRepo{pool: pool}
}

func (r *sourceRepo) EnsureSchema(ctx context.Context, labels domain.LabelSet) error {
	if _, err := r.pool.Exec(ctx, createSourceTableSQL(labels)); err != nil {
		return fmt.Errorf("create source_record table: %w", err)
	}
	return nil
}

func (r *sourceRepo) Exists(ctx context.Context, storageKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM source_record WHERE storage_key = $1)`,
		storageKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check source %s: %w", storageKey, err)
	}
	return exists, nil
}

func (r *sourceRepo) Create(ctx context.Context, record *domain.SourceRecord) error {
	query := `
		INSERT INTO source_record (source_url, storage_key, label)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query,
		record.SourceURL, record.StorageKey, string(record.Label),
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return domain.ErrDuplicateSource
			case pgerrcode.CheckViolation:
				return fmt.Errorf("%w: %s", domain.ErrInvalidLabel, record.Label)
			}
		}
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

func (r *sourceRepo) List(ctx context.Context) ([]*domain.SourceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_url, storage_key, label, created_at
		FROM source_record
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var records []*domain.SourceRecord
	for rows.Next() {
		var (
			rec   domain.SourceRecord
			label string
		)
		if err := rows.Scan(&rec.ID, &rec.SourceURL, &rec.StorageKey, &label, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		rec.Label = domain.Label(label)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return records, nil
}

// createSourceTableSQL renders the DDL with a CHECK constraint over the label
// set. Labels are restricted to [a-z0-9_-] by domain.NewLabelSet, so quoting
// them inline is safe.
func createSourceTableSQL(labels domain.LabelSet) string {
	quoted := make([]string, 0, labels.Len())
	for _, l := range labels.Labels() {
		quoted = append(quoted, "'"+string(l)+"'")
	}
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS source_record (
			id          BIGSERIAL PRIMARY KEY,
			source_url  TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			label       TEXT NOT NULL CHECK (label IN (%s)),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT source_record_storage_key_key UNIQUE (storage_key)
		)
	`, strings.Join(quoted, ", "))
}
