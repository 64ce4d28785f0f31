package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool. SQLite is the default for
// single-user installs; Postgres serves shared-household deployments where
// several hosts point at one vault database.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	status           TEXT NOT NULL DEFAULT 'active',
	address          TEXT,
	country          TEXT,
	purchase_date    TEXT,
	purchase_price   DOUBLE PRECISION,
	current_value    DOUBLE PRECISION,
	municipal_tax_id TEXT,
	society_id       TEXT,
	electricity_id   TEXT,
	notes            TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ingested_files (
	id           TEXT PRIMARY KEY,
	file_path    TEXT NOT NULL UNIQUE,
	property_id  TEXT NOT NULL REFERENCES properties(id),
	category     TEXT NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS manual_overrides (
	id         TEXT PRIMARY KEY,
	file_path  TEXT NOT NULL UNIQUE,
	category   TEXT NOT NULL,
	comment    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS property_events (
	id          TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	event_type  TEXT NOT NULL,
	description TEXT,
	event_date  TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
CREATE INDEX IF NOT EXISTS idx_ingested_files_property ON ingested_files(property_id);
CREATE INDEX IF NOT EXISTS idx_property_events_property ON property_events(property_id);
CREATE INDEX IF NOT EXISTS idx_property_events_date ON property_events(event_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgPropertyColumns = `id, name, status,
	COALESCE(address, ''), COALESCE(country, ''), COALESCE(purchase_date, ''),
	COALESCE(purchase_price, 0), COALESCE(current_value, 0),
	COALESCE(municipal_tax_id, ''), COALESCE(society_id, ''),
	COALESCE(electricity_id, ''), COALESCE(notes, ''), created_at`

func (s *PostgresStore) GetPropertyByName(ctx context.Context, name string) (*model.Property, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPropertyColumns+` FROM properties WHERE name = $1`, name,
	)
	p, err := scanProperty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get property %s", name)
	}
	return p, nil
}

func (s *PostgresStore) ListActiveProperties(ctx context.Context) ([]model.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPropertyColumns+` FROM properties WHERE status = $1 ORDER BY name`,
		string(model.PropertyStatusActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan property")
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list properties iterate")
}

func (s *PostgresStore) CreateProperty(ctx context.Context, name string) (*model.Property, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO properties (id, name, status, created_at) VALUES ($1, $2, $3, $4)`,
		id, name, string(model.PropertyStatusActive), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert property %s", name)
	}

	return &model.Property{
		ID:        id,
		Name:      name,
		Status:    model.PropertyStatusActive,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdatePropertyMetadata(ctx context.Context, propertyID string, meta model.PropertyMetadata) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE properties SET municipal_tax_id = $1, society_id = $2, electricity_id = $3, notes = $4 WHERE id = $5`,
		meta.MunicipalTaxID, meta.SocietyID, meta.ElectricityID, meta.Notes, propertyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update property metadata %s", propertyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("property not found: %s", propertyID)
	}
	return nil
}

func (s *PostgresStore) CheckpointExists(ctx context.Context, filePath string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM ingested_files WHERE file_path = $1`, filePath,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: checkpoint exists")
	}
	return true, nil
}

func (s *PostgresStore) RecordCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	id := cp.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingested_files (id, file_path, property_id, category, processed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (file_path) DO NOTHING`,
		id, cp.FilePath, cp.PropertyID, cp.Category, cp.ProcessedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record checkpoint %s", cp.FilePath)
}

func (s *PostgresStore) LookupOverride(ctx context.Context, filePath string) (string, error) {
	var category string
	err := s.pool.QueryRow(ctx,
		`SELECT category FROM manual_overrides WHERE file_path = $1`, filePath,
	).Scan(&category)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: lookup override")
	}
	return category, nil
}

func (s *PostgresStore) UpsertOverride(ctx context.Context, filePath, category, comment string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO manual_overrides (id, file_path, category, comment)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (file_path) DO UPDATE SET category = EXCLUDED.category, comment = EXCLUDED.comment`,
		uuid.New().String(), filePath, category, comment,
	)
	return eris.Wrapf(err, "postgres: upsert override %s", filePath)
}

func (s *PostgresStore) AppendEvent(ctx context.Context, propertyID string, kind model.EventKind, description, eventDate string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO property_events (id, property_id, event_type, description, event_date)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), propertyID, string(kind), description, eventDate,
	)
	return eris.Wrapf(err, "postgres: append event for property %s", propertyID)
}

func (s *PostgresStore) ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, property_id, event_type, COALESCE(description, ''), COALESCE(event_date, ''), created_at
		 FROM property_events ORDER BY created_at DESC, id LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recent events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var kind string
		if err := rows.Scan(&e.ID, &e.PropertyID, &kind, &e.Description, &e.EventDate, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		e.Kind = model.EventKind(kind)
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list recent events iterate")
}

func (s *PostgresStore) ListActivity(ctx context.Context) ([]PropertyActivity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPropertyColumns+`,
			(SELECT COUNT(*) FROM ingested_files f WHERE f.property_id = properties.id),
			(SELECT COUNT(*) FROM property_events e WHERE e.property_id = properties.id)
		 FROM properties ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list activity")
	}
	defer rows.Close()

	var out []PropertyActivity
	for rows.Next() {
		var a PropertyActivity
		p := &a.Property
		err := rows.Scan(
			&p.ID, &p.Name, &p.Status,
			&p.Address, &p.Country, &p.PurchaseDate,
			&p.PurchasePrice, &p.CurrentValue,
			&p.MunicipalTaxID, &p.SocietyID,
			&p.ElectricityID, &p.Notes, &p.CreatedAt,
			&a.Checkpoints, &a.Events,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list activity iterate")
}
