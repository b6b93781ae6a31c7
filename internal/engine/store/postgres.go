package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores entries in a shared video_cache table, one row per
// (channel, key).
type Postgres struct {
	pool    *pgxpool.Pool
	channel string
}

// OpenPostgres connects to dsn and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn, namespace string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("store: postgres backend needs CACHE_URL")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS video_cache (
		channel    TEXT NOT NULL,
		video_id   TEXT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (channel, video_id)
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: postgres schema: %w", err)
	}
	return &Postgres{pool: pool, channel: namespace}, nil
}

func (p *Postgres) get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := p.pool.QueryRow(ctx,
		`SELECT payload::text FROM video_cache WHERE channel = $1 AND video_id = $2`,
		p.channel, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: postgres get %q: %w", key, err)
	}
	return []byte(v), true, nil
}

func (p *Postgres) Upsert(ctx context.Context, key string, fill FillFunc) ([]byte, bool, error) {
	if v, ok, err := p.get(ctx, key); err != nil || ok {
		return v, false, err
	}
	v, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO video_cache (channel, video_id, payload) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (channel, video_id) DO NOTHING`,
		p.channel, key, string(v))
	if err != nil {
		return nil, false, fmt.Errorf("store: postgres insert %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		stored, _, err := p.get(ctx, key)
		return stored, false, err
	}
	return v, true, nil
}

func (p *Postgres) Len(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM video_cache WHERE channel = $1`, p.channel).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: postgres count: %w", err)
	}
	return n, nil
}

func (p *Postgres) Flush(context.Context) error { return nil }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
