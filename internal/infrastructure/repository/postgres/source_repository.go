package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

const sourceColumns = `id, domain, filename, storage_path, status, chunk_count, error_message, created_at, updated_at`

func (r *SourceRepository) Create(ctx context.Context, src *domain.Source) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_sources (`+sourceColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		src.ID, src.Domain, src.Filename, src.StoragePath, string(src.Status),
		src.ChunkCount, src.Error, src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+sourceColumns+`
FROM ingest_sources
WHERE id = $1
`, id)

	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get source", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return src, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_sources
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	return requireAffected(res, "update source status", id)
}

func (r *SourceRepository) SaveChunkCount(ctx context.Context, id string, count int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_sources
SET chunk_count = $2, updated_at = $3
WHERE id = $1
`, id, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	return requireAffected(res, "save chunk count", id)
}

func (r *SourceRepository) ListReady(ctx context.Context) ([]domain.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+sourceColumns+`
FROM ingest_sources
WHERE status = $1
ORDER BY created_at ASC, id ASC
`, string(domain.SourceReady))
	if err != nil {
		return nil, fmt.Errorf("list ready sources: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Source, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.Source, error) {
	var src domain.Source
	var status string
	if err := row.Scan(
		&src.ID, &src.Domain, &src.Filename, &src.StoragePath, &status,
		&src.ChunkCount, &src.Error, &src.CreatedAt, &src.UpdatedAt,
	); err != nil {
		return nil, err
	}
	src.Status = domain.SourceStatus(status)
	return &src, nil
}

func requireAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
