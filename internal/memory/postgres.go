package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresPersister keeps the memory as a single JSONB row
type PostgresPersister struct {
	db    *sqlx.DB
	table string
}

// NewPostgresPersister uses an open database handle and creates the table
// when missing
func NewPostgresPersister(ctx context.Context, db *sqlx.DB, table string) (*PostgresPersister, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	p := &PostgresPersister{db: db, table: table}
	if err := p.migrate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// ConnectPostgresPersister opens dsn with the pq driver
func ConnectPostgresPersister(ctx context.Context, dsn, table string) (*PostgresPersister, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	p, err := NewPostgresPersister(ctx, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresPersister) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		snapshot JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, p.table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresPersister) Name() string { return "postgres" }

// Close releases the database handle
func (p *PostgresPersister) Close() error { return p.db.Close() }

func (p *PostgresPersister) Load(ctx context.Context) (*Snapshot, error) {
	var raw []byte
	query := fmt.Sprintf(`SELECT snapshot FROM %s WHERE id = $1`, p.table)
	err := p.db.GetContext(ctx, &raw, query, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select memory: %w", err)
	}
	return decodeSnapshot(raw)
}

func (p *PostgresPersister) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, snapshot, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at`, p.table)
	if _, err := p.db.ExecContext(ctx, query, snapshotID, string(data)); err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}
