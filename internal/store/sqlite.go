package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/keystone-estates/ingest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	status           TEXT NOT NULL DEFAULT 'active',
	address          TEXT,
	country          TEXT,
	purchase_date    TEXT,
	purchase_price   REAL,
	current_value    REAL,
	municipal_tax_id TEXT,
	society_id       TEXT,
	electricity_id   TEXT,
	notes            TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ingested_files (
	id           TEXT PRIMARY KEY,
	file_path    TEXT NOT NULL UNIQUE,
	property_id  TEXT NOT NULL REFERENCES properties(id),
	category     TEXT NOT NULL,
	processed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS manual_overrides (
	id         TEXT PRIMARY KEY,
	file_path  TEXT NOT NULL UNIQUE,
	category   TEXT NOT NULL,
	comment    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS property_events (
	id          TEXT PRIMARY KEY,
	property_id TEXT NOT NULL REFERENCES properties(id),
	event_type  TEXT NOT NULL,
	description TEXT,
	event_date  TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
CREATE INDEX IF NOT EXISTS idx_ingested_files_property ON ingested_files(property_id);
CREATE INDEX IF NOT EXISTS idx_property_events_property ON property_events(property_id);
CREATE INDEX IF NOT EXISTS idx_property_events_date ON property_events(event_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqlitePropertyColumns = `id, name, status,
	COALESCE(address, ''), COALESCE(country, ''), COALESCE(purchase_date, ''),
	COALESCE(purchase_price, 0), COALESCE(current_value, 0),
	COALESCE(municipal_tax_id, ''), COALESCE(society_id, ''),
	COALESCE(electricity_id, ''), COALESCE(notes, ''), created_at`

func scanProperty(row interface{ Scan(dest ...any) error }) (*model.Property, error) {
	var p model.Property
	err := row.Scan(
		&p.ID, &p.Name, &p.Status,
		&p.Address, &p.Country, &p.PurchaseDate,
		&p.PurchasePrice, &p.CurrentValue,
		&p.MunicipalTaxID, &p.SocietyID,
		&p.ElectricityID, &p.Notes, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) GetPropertyByName(ctx context.Context, name string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE name = ?`, name,
	)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get property %s", name)
	}
	return p, nil
}

func (s *SQLiteStore) ListActiveProperties(ctx context.Context) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePropertyColumns+` FROM properties WHERE status = ? ORDER BY name`,
		string(model.PropertyStatusActive),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan property")
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "sqlite: list properties iterate")
}

func (s *SQLiteStore) CreateProperty(ctx context.Context, name string) (*model.Property, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO properties (id, name, status, created_at) VALUES (?, ?, ?, ?)`,
		id, name, string(model.PropertyStatusActive), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert property %s", name)
	}

	return &model.Property{
		ID:        id,
		Name:      name,
		Status:    model.PropertyStatusActive,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdatePropertyMetadata(ctx context.Context, propertyID string, meta model.PropertyMetadata) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE properties SET municipal_tax_id = ?, society_id = ?, electricity_id = ?, notes = ? WHERE id = ?`,
		meta.MunicipalTaxID, meta.SocietyID, meta.ElectricityID, meta.Notes, propertyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update property metadata %s", propertyID)
	}
	return checkRowsAffected(res, "property", propertyID)
}

func (s *SQLiteStore) CheckpointExists(ctx context.Context, filePath string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM ingested_files WHERE file_path = ?`, filePath,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: checkpoint exists")
	}
	return true, nil
}

func (s *SQLiteStore) RecordCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	id := cp.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingested_files (id, file_path, property_id, category, processed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(file_path) DO NOTHING`,
		id, cp.FilePath, cp.PropertyID, cp.Category, cp.ProcessedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record checkpoint %s", cp.FilePath)
}

func (s *SQLiteStore) LookupOverride(ctx context.Context, filePath string) (string, error) {
	var category string
	err := s.db.QueryRowContext(ctx,
		`SELECT category FROM manual_overrides WHERE file_path = ?`, filePath,
	).Scan(&category)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: lookup override")
	}
	return category, nil
}

func (s *SQLiteStore) UpsertOverride(ctx context.Context, filePath, category, comment string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO manual_overrides (id, file_path, category, comment)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(file_path) DO UPDATE SET category = excluded.category, comment = excluded.comment`,
		uuid.New().String(), filePath, category, comment,
	)
	return eris.Wrapf(err, "sqlite: upsert override %s", filePath)
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, propertyID string, kind model.EventKind, description, eventDate string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO property_events (id, property_id, event_type, description, event_date)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), propertyID, string(kind), description, eventDate,
	)
	return eris.Wrapf(err, "sqlite: append event for property %s", propertyID)
}

func (s *SQLiteStore) ListRecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, property_id, event_type, COALESCE(description, ''), COALESCE(event_date, ''), created_at
		 FROM property_events ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var kind string
		if err := rows.Scan(&e.ID, &e.PropertyID, &kind, &e.Description, &e.EventDate, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		e.Kind = model.EventKind(kind)
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list recent events iterate")
}

func (s *SQLiteStore) ListActivity(ctx context.Context) ([]PropertyActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqlitePropertyColumns+`,
			(SELECT COUNT(*) FROM ingested_files f WHERE f.property_id = properties.id),
			(SELECT COUNT(*) FROM property_events e WHERE e.property_id = properties.id)
		 FROM properties ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activity")
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
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list activity iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
