package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pgvector/pgvector-go"
)

type recordRepository struct {
	pool *pgxpool.Pool
}

var _ interfaces.RecordRepository = &recordRepository{}

const recordColumns = `id, namespace, category, summary, embedding, importance, pinned,
	deterministic_key, created_at, updated_at, last_accessed, last_verified_at`

func scanRecord(row pgx.Row) (*model.MemoryRecord, error) {
	var (
		record   model.MemoryRecord
		id       string
		ns       string
		category string
		vec      pgvector.Vector
	)

	err := row.Scan(&id, &ns, &category, &record.Summary, &vec, &record.Importance,
		&record.Pinned, &record.DeterministicKey, &record.CreatedAt, &record.UpdatedAt,
		&record.LastAccessed, &record.LastVerifiedAt)
	if err != nil {
		return nil, err
	}

	record.ID = model.RecordID(id)
	record.Namespace = types.Namespace(ns)
	record.Category = types.Category(category)
	record.Embedding = vec.Slice()

	return &record, nil
}

func (r *recordRepository) Create(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	created := *record
	if created.ID == "" {
		created.ID = model.NewRecordID()
	}
	now := time.Now()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	query := `INSERT INTO memory_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		string(created.ID), created.Namespace.String(), created.Category.String(),
		created.Summary, pgvector.NewVector(created.Embedding), created.Importance,
		created.Pinned, created.DeterministicKey, created.CreatedAt, created.UpdatedAt,
		created.LastAccessed, created.LastVerifiedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert record",
			goerr.V("namespace", created.Namespace), goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *recordRepository) Get(ctx context.Context, namespace types.Namespace, id model.RecordID) (*model.MemoryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM memory_records WHERE namespace = $1 AND id = $2`

	record, err := scanRecord(r.pool.QueryRow(ctx, query, namespace.String(), string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "record not found",
				goerr.V("namespace", namespace), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get record",
			goerr.V("namespace", namespace), goerr.V("id", id))
	}

	return record, nil
}

func (r *recordRepository) GetByKey(ctx context.Context, namespace types.Namespace, key string) (*model.MemoryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM memory_records
		WHERE namespace = $1 AND deterministic_key = $2 LIMIT 1`

	record, err := scanRecord(r.pool.QueryRow(ctx, query, namespace.String(), key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "no record holds key",
				goerr.V("namespace", namespace), goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to get record by key",
			goerr.V("namespace", namespace), goerr.V("key", key))
	}

	return record, nil
}

func (r *recordRepository) Update(ctx context.Context, record *model.MemoryRecord) (*model.MemoryRecord, error) {
	updated := *record
	updated.UpdatedAt = time.Now()

	query := `UPDATE memory_records SET category = $3, summary = $4, embedding = $5,
		importance = $6, pinned = $7, deterministic_key = $8, updated_at = $9,
		last_accessed = $10, last_verified_at = $11
		WHERE namespace = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query,
		updated.Namespace.String(), string(updated.ID), updated.Category.String(),
		updated.Summary, pgvector.NewVector(updated.Embedding), updated.Importance,
		updated.Pinned, updated.DeterministicKey, updated.UpdatedAt,
		updated.LastAccessed, updated.LastVerifiedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update record",
			goerr.V("namespace", updated.Namespace), goerr.V("id", updated.ID))
	}
	if tag.RowsAffected() == 0 {
		return nil, goerr.Wrap(ErrNotFound, "record not found",
			goerr.V("namespace", updated.Namespace), goerr.V("id", updated.ID))
	}

	return &updated, nil
}

func (r *recordRepository) Delete(ctx context.Context, namespace types.Namespace, id model.RecordID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memory_records WHERE namespace = $1 AND id = $2`,
		namespace.String(), string(id))
	if err != nil {
		return goerr.Wrap(err, "failed to delete record",
			goerr.V("namespace", namespace), goerr.V("id", id))
	}
	if tag.RowsAffected() == 0 {
		return goerr.Wrap(ErrNotFound, "record not found",
			goerr.V("namespace", namespace), goerr.V("id", id))
	}

	return nil
}

func (r *recordRepository) List(ctx context.Context, namespace types.Namespace) ([]*model.MemoryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM memory_records
		WHERE namespace = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, namespace.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records", goerr.V("namespace", namespace))
	}
	defer rows.Close()

	var records []*model.MemoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan record", goerr.V("namespace", namespace))
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records", goerr.V("namespace", namespace))
	}

	return records, nil
}

func (r *recordRepository) FindByEmbedding(ctx context.Context, namespace types.Namespace, category types.Category, embedding []float32, limit int) ([]*model.Neighbor, error) {
	query := `SELECT ` + recordColumns + `, 1 - (embedding <=> $2) AS similarity
		FROM memory_records
		WHERE namespace = $1 AND embedding IS NOT NULL`
	args := []any{namespace.String(), pgvector.NewVector(embedding)}

	if category != "" {
		query += ` AND category = $3`
		args = append(args, category.String())
	}
	query += ` ORDER BY embedding <=> $2, updated_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search records",
			goerr.V("namespace", namespace), goerr.V("category", category))
	}
	defer rows.Close()

	var neighbors []*model.Neighbor
	for rows.Next() {
		var (
			record     model.MemoryRecord
			id         string
			ns         string
			cat        string
			vec        pgvector.Vector
			similarity float64
		)
		err := rows.Scan(&id, &ns, &cat, &record.Summary, &vec, &record.Importance,
			&record.Pinned, &record.DeterministicKey, &record.CreatedAt, &record.UpdatedAt,
			&record.LastAccessed, &record.LastVerifiedAt, &similarity)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan neighbor", goerr.V("namespace", namespace))
		}
		record.ID = model.RecordID(id)
		record.Namespace = types.Namespace(ns)
		record.Category = types.Category(cat)
		record.Embedding = vec.Slice()

		neighbors = append(neighbors, &model.Neighbor{
			Record:     &record,
			Similarity: model.ClampSimilarity(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate neighbors", goerr.V("namespace", namespace))
	}

	return neighbors, nil
}
