package psqlstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gmbtravels/gmbservice/internal/db"
	"github.com/gmbtravels/gmbservice/internal/docstore"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
	seq        BIGSERIAL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

const uniqueViolation = "23505"

func init() {
	opener := func(ctx context.Context, params docstore.OpenParams) (docstore.Backend, error) {
		return Open(ctx, params)
	}
	docstore.Register("postgres", opener)
	docstore.Register("postgresql", opener)
}

// Store keeps every collection in a single jsonb table.
type Store struct {
	db     *pgxpool.Pool
	dbName string
}

var (
	_ docstore.Backend          = (*Store)(nil)
	_ docstore.MetricsCollector = (*Store)(nil)
)

func Open(ctx context.Context, params docstore.OpenParams) (*Store, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		ConnString:     params.URI,
		TracingEnabled: params.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	s := New(dbPool)
	if err := s.Migrate(ctx); err != nil {
		dbPool.Close()
		return nil, err
	}

	return s, nil
}

func New(dbPool *pgxpool.Pool) *Store {
	return &Store{
		db:     dbPool,
		dbName: dbPool.Config().ConnConfig.Database,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *Store) Collector() prometheus.Collector {
	return pgxpoolprometheus.NewCollector(s.db, map[string]string{"db_name": s.dbName})
}

func (s *Store) List(ctx context.Context, collection string, dst any) error {
	rows, err := s.db.Query(
		ctx,
		`SELECT body FROM documents WHERE collection = $1 ORDER BY seq`,
		collection,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	buf := bytes.NewBufferString("[")
	first := true
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(body)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	buf.WriteByte(']')

	return json.Unmarshal(buf.Bytes(), dst)
}

func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	var body []byte
	err := s.db.QueryRow(
		ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(body, dst)
}

func (s *Store) Insert(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.db.Exec(
		ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)`,
		collection, id, string(body),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return docstore.ErrDuplicateID
	}
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any, dst any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}

	var body []byte
	err = s.db.QueryRow(
		ctx,
		`UPDATE documents SET body = body || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
		RETURNING body`,
		collection, id, string(patch),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(body, dst)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.db.Exec(
		ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRow(
		ctx,
		`SELECT count(*) FROM documents WHERE collection = $1`,
		collection,
	).Scan(&count)
	return count, err
}

func (s *Store) Close(_ context.Context) error {
	s.db.Close() // blocking operation
	return nil
}
