package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pennybridge/mnemon/pkg/domain/interfaces"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pgvector/pgvector-go"
)

type episodeRepository struct {
	pool *pgxpool.Pool
}

var _ interfaces.EpisodeRepository = &episodeRepository{}

const episodeColumns = `id, namespace, summary, embedding, date_iso, iso_week, year,
	merge_count, created_at, updated_at`

func scanEpisode(row pgx.Row) (*model.EpisodicRecord, error) {
	var (
		episode model.EpisodicRecord
		id      string
		ns      string
		vec     pgvector.Vector
	)

	err := row.Scan(&id, &ns, &episode.Summary, &vec, &episode.DateISO, &episode.ISOWeek,
		&episode.Year, &episode.MergeCount, &episode.CreatedAt, &episode.UpdatedAt)
	if err != nil {
		return nil, err
	}

	episode.ID = model.EpisodeID(id)
	episode.Namespace = types.Namespace(ns)
	episode.Embedding = vec.Slice()

	return &episode, nil
}

func (r *episodeRepository) Create(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	created := *episode
	if created.ID == "" {
		created.ID = model.NewEpisodeID()
	}
	now := time.Now()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	query := `INSERT INTO episodes (` + episodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		string(created.ID), created.Namespace.String(), created.Summary,
		pgvector.NewVector(created.Embedding), created.DateISO, created.ISOWeek,
		created.Year, created.MergeCount, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert episode",
			goerr.V("namespace", created.Namespace), goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *episodeRepository) Get(ctx context.Context, namespace types.Namespace, id model.EpisodeID) (*model.EpisodicRecord, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE namespace = $1 AND id = $2`

	episode, err := scanEpisode(r.pool.QueryRow(ctx, query, namespace.String(), string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "episode not found",
				goerr.V("namespace", namespace), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get episode",
			goerr.V("namespace", namespace), goerr.V("id", id))
	}

	return episode, nil
}

func (r *episodeRepository) Update(ctx context.Context, episode *model.EpisodicRecord) (*model.EpisodicRecord, error) {
	updated := *episode
	updated.UpdatedAt = time.Now()

	query := `UPDATE episodes SET summary = $3, embedding = $4, date_iso = $5,
		iso_week = $6, year = $7, merge_count = $8, updated_at = $9
		WHERE namespace = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query,
		updated.Namespace.String(), string(updated.ID), updated.Summary,
		pgvector.NewVector(updated.Embedding), updated.DateISO, updated.ISOWeek,
		updated.Year, updated.MergeCount, updated.UpdatedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update episode",
			goerr.V("namespace", updated.Namespace), goerr.V("id", updated.ID))
	}
	if tag.RowsAffected() == 0 {
		return nil, goerr.Wrap(ErrNotFound, "episode not found",
			goerr.V("namespace", updated.Namespace), goerr.V("id", updated.ID))
	}

	return &updated, nil
}

func (r *episodeRepository) list(ctx context.Context, query string, args ...any) ([]*model.EpisodicRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query episodes")
	}
	defer rows.Close()

	var episodes []*model.EpisodicRecord
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan episode")
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate episodes")
	}

	return episodes, nil
}

func (r *episodeRepository) ListRecent(ctx context.Context, namespace types.Namespace, limit int) ([]*model.EpisodicRecord, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes
		WHERE namespace = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, namespace.String(), limit)
}

func (r *episodeRepository) ListByDate(ctx context.Context, namespace types.Namespace, dateISO string) ([]*model.EpisodicRecord, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes
		WHERE namespace = $1 AND date_iso = $2 ORDER BY created_at DESC`
	return r.list(ctx, query, namespace.String(), dateISO)
}

func (r *episodeRepository) ListByWeek(ctx context.Context, namespace types.Namespace, year, isoWeek int) ([]*model.EpisodicRecord, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes
		WHERE namespace = $1 AND year = $2 AND iso_week = $3 ORDER BY created_at DESC`
	return r.list(ctx, query, namespace.String(), year, isoWeek)
}

func (r *episodeRepository) CountCreatedSince(ctx context.Context, namespace types.Namespace, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM episodes WHERE namespace = $1 AND created_at >= $2`,
		namespace.String(), since).Scan(&count)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count episodes", goerr.V("namespace", namespace))
	}

	return count, nil
}

func (r *episodeRepository) LastCreatedAt(ctx context.Context, namespace types.Namespace) (time.Time, error) {
	var createdAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT created_at FROM episodes WHERE namespace = $1 ORDER BY created_at DESC LIMIT 1`,
		namespace.String()).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, goerr.Wrap(err, "failed to get last episode time", goerr.V("namespace", namespace))
	}

	return createdAt, nil
}
