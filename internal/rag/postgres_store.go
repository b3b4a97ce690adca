package rag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// maxEfSearch is the upper bound pgvector accepts for hnsw.ef_search.
const maxEfSearch = 1000

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const indexKindQuery = `SELECT am.amname
FROM pg_class i
JOIN pg_index x ON x.indexrelid = i.oid
JOIN pg_class t ON t.oid = x.indrelid
JOIN pg_am am ON am.oid = i.relam
WHERE i.relname = $1 AND t.relname = $2`

// PostgresStore is the PostgreSQL + pgvector implementation of
// core.VectorStore. Each collection is a table (id, text, <field> vector).
type PostgresStore struct {
	db    *sqlx.DB
	field string
	log   logger.Sink
}

// NewPostgresStore opens a connection pool for dsn.
func NewPostgresStore(dsn, field string, log logger.Sink) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to postgres: %v", core.ErrStore, err)
	}
	return NewPostgresStoreFromDB(db, field, log)
}

// NewPostgresStoreFromDB wraps an existing handle.
func NewPostgresStoreFromDB(db *sqlx.DB, field string, log logger.Sink) (*PostgresStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if field == "" {
		field = DefaultField
	}
	if err := validIdentifier(field); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, field: field, log: log}, nil
}

func validIdentifier(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", core.ErrStore, name)
	}
	return nil
}

// ReplaceAll deletes every row of the table and inserts records in one
// transaction.
func (s *PostgresStore) ReplaceAll(ctx context.Context, collection string, records []core.Record) (int, error) {
	if err := validIdentifier(collection); err != nil {
		return 0, err
	}
	table := pq.QuoteIdentifier(collection)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", core.ErrStore, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("%w: failed to clear %s: %v", core.ErrStore, collection, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (text, %s) VALUES ($1, $2)", table, pq.QuoteIdentifier(s.field))
	keep := storable(records)
	for _, r := range keep {
		if _, err := tx.ExecContext(ctx, insert, r.Text, pgvector.NewVector(r.Embedding)); err != nil {
			return 0, fmt.Errorf("%w: failed to insert into %s: %v", core.ErrStore, collection, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", core.ErrStore, err)
	}
	s.log.Infof("Inserted %d rows into %s", len(keep), collection)
	return len(keep), nil
}

type pgRow struct {
	Text      string          `db:"text"`
	Embedding pgvector.Vector `db:"embedding"`
}

// ApproximateSearch confirms the index uses an hnsw or ivfflat access method
// and orders rows by cosine distance.
func (s *PostgresStore) ApproximateSearch(ctx context.Context, req core.SearchRequest) ([]core.Record, error) {
	field := req.Field
	if field == "" {
		field = s.field
	}
	if err := validIdentifier(req.Collection); err != nil {
		return []core.Record{}, err
	}
	if err := validIdentifier(field); err != nil {
		return []core.Record{}, err
	}

	var kind string
	err := s.db.GetContext(ctx, &kind, indexKindQuery, req.Index, req.Collection)
	if errors.Is(err, sql.ErrNoRows) {
		return []core.Record{}, indexError(req, "")
	}
	if err != nil {
		return []core.Record{}, fmt.Errorf("%w: looking up index %s: %v", core.ErrStore, req.Index, err)
	}
	if kind != "hnsw" && kind != "ivfflat" {
		return []core.Record{}, indexError(req, kind)
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return []core.Record{}, fmt.Errorf("%w: begin: %v", core.ErrStore, err)
	}
	defer tx.Rollback()

	if kind == "hnsw" {
		ef := candidatePool(req)
		if ef > maxEfSearch {
			ef = maxEfSearch
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", ef)); err != nil {
			return []core.Record{}, fmt.Errorf("%w: setting ef_search: %v", core.ErrStore, err)
		}
	}

	col := pq.QuoteIdentifier(field)
	query := fmt.Sprintf("SELECT text, %s AS embedding FROM %s ORDER BY %s <=> $1 LIMIT $2",
		col, pq.QuoteIdentifier(req.Collection), col)

	var rows []pgRow
	if err := tx.SelectContext(ctx, &rows, query, pgvector.NewVector(req.Vector), req.Limit); err != nil {
		return []core.Record{}, fmt.Errorf("%w: search on %s failed: %v", core.ErrStore, req.Collection, err)
	}
	if err := tx.Commit(); err != nil {
		return []core.Record{}, fmt.Errorf("%w: commit: %v", core.ErrStore, err)
	}

	records := make([]core.Record, len(rows))
	for i, r := range rows {
		records[i] = core.Record{Text: r.Text, Embedding: r.Embedding.Slice()}
	}
	return records, nil
}

// Count returns the number of rows in the table.
func (s *PostgresStore) Count(ctx context.Context, collection string) (int64, error) {
	if err := validIdentifier(collection); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+pq.QuoteIdentifier(collection)); err != nil {
		return 0, fmt.Errorf("%w: count on %s failed: %v", core.ErrStore, collection, err)
	}
	return n, nil
}

// EnsureCollection creates the vector extension, the table and an HNSW
// cosine index when they are missing.
func (s *PostgresStore) EnsureCollection(ctx context.Context, collection, indexName, field string) error {
	if field == "" {
		field = s.field
	}
	for _, id := range []string{collection, indexName, field} {
		if err := validIdentifier(id); err != nil {
			return err
		}
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id BIGSERIAL PRIMARY KEY, text TEXT NOT NULL, %s vector(%d) NOT NULL)",
			pq.QuoteIdentifier(collection), pq.QuoteIdentifier(field), core.EmbeddingDim),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (%s vector_cosine_ops)",
			pq.QuoteIdentifier(indexName), pq.QuoteIdentifier(collection), pq.QuoteIdentifier(field)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", collection, err)
		}
	}
	s.log.Infof("Ensured table %s with index %s", collection, indexName)
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
