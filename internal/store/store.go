package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/dataset"
)

// Drivers supported by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists cleaned datasets in a relational database. Each Replace is a
// full replacement of the previous contents; nothing is merged.
type Store struct {
	db      *sqlx.DB
	dialect string
}

// Open connects to driver/dsn and ensures the schema exists.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection and ensures the schema exists.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: nil db")
	}
	s := &Store{db: db, dialect: db.DriverName()}
	schema := postgresSchema
	if s.dialect == DriverSQLite {
		// One connection keeps in-memory databases and PRAGMAs consistent.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			return nil, fmt.Errorf("store: enable foreign keys: %w", err)
		}
		schema = sqliteSchema
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the connection for callers that need raw access.
func (s *Store) DB() *sqlx.DB { return s.db }

// LoadStats summarizes a Replace.
type LoadStats struct {
	Facts      int `json:"facts"`
	Locations  int `json:"locations"`
	Modalities int `json:"modalities"`
}

type locationKey struct{ department, province, district string }

// Replace clears every table and loads t as the only dataset, inside one
// transaction. Location and modality dimensions are deduplicated; rows with
// no location or modality reference NULL.
func (s *Store) Replace(ctx context.Context, src dataset.SourceInfo, t *dataset.Table) (LoadStats, error) {
	var stats LoadStats
	if t == nil {
		return stats, dataset.ErrNotTabular
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"facts", "sources", "locations", "modalities"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return stats, fmt.Errorf("store: clear %s: %w", table, err)
		}
	}

	const sourceID = 1
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO sources (id, path, size, mod_time, loaded_at, row_count) VALUES (?, ?, ?, ?, ?, ?)`),
		sourceID, src.Path, src.Size, src.ModTime.UTC().Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano), t.Len()); err != nil {
		return stats, fmt.Errorf("store: insert source: %w", err)
	}

	locStmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO locations (id, department, province, district) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return stats, fmt.Errorf("store: prepare locations: %w", err)
	}
	defer locStmt.Close()
	modStmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO modalities (id, name) VALUES (?, ?)`))
	if err != nil {
		return stats, fmt.Errorf("store: prepare modalities: %w", err)
	}
	defer modStmt.Close()
	factStmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO facts (id, source_id, year, month, location_id, modality_id, count) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return stats, fmt.Errorf("store: prepare facts: %w", err)
	}
	defer factStmt.Close()

	locations := map[locationKey]int64{}
	modalities := map[string]int64{}
	for i, r := range t.Records {
		var locID, modID sql.NullInt64
		if r.Department != "" || r.Province != "" || r.District != "" {
			k := locationKey{r.Department, r.Province, r.District}
			id, ok := locations[k]
			if !ok {
				id = int64(len(locations) + 1)
				if _, err := locStmt.ExecContext(ctx, id, k.department, k.province, k.district); err != nil {
					return stats, fmt.Errorf("store: insert location: %w", err)
				}
				locations[k] = id
			}
			locID = sql.NullInt64{Int64: id, Valid: true}
		}
		if r.Modality != "" {
			id, ok := modalities[r.Modality]
			if !ok {
				id = int64(len(modalities) + 1)
				if _, err := modStmt.ExecContext(ctx, id, r.Modality); err != nil {
					return stats, fmt.Errorf("store: insert modality: %w", err)
				}
				modalities[r.Modality] = id
			}
			modID = sql.NullInt64{Int64: id, Valid: true}
		}
		if _, err := factStmt.ExecContext(ctx, i+1, sourceID, r.Year, r.Month, locID, modID, r.Count); err != nil {
			return stats, fmt.Errorf("store: insert fact %d: %w", i+1, err)
		}
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("store: commit: %w", err)
	}
	stats.Facts = t.Len()
	stats.Locations = len(locations)
	stats.Modalities = len(modalities)
	return stats, nil
}

type factRow struct {
	Year       int    `db:"year"`
	Month      int    `db:"month"`
	Department string `db:"department"`
	Province   string `db:"province"`
	District   string `db:"district"`
	Modality   string `db:"modality"`
	Count      int64  `db:"count"`
}

// Fetch reads the stored facts back as a canonical table.
func (s *Store) Fetch(ctx context.Context) (*dataset.Table, error) {
	return s.fetch(ctx, `SELECT year, month, department, province, district, modality, count FROM denuncias ORDER BY year, month`)
}

// Head returns the first n stored facts.
func (s *Store) Head(ctx context.Context, n int) (*dataset.Table, error) {
	if n <= 0 {
		n = config.DefaultCanonicalPreviewRows
	}
	return s.fetch(ctx, s.db.Rebind(`SELECT year, month, department, province, district, modality, count FROM denuncias LIMIT ?`), n)
}

func (s *Store) fetch(ctx context.Context, query string, args ...any) (*dataset.Table, error) {
	var rows []factRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("store: fetch: %w", err)
	}
	t := &dataset.Table{Columns: dataset.CanonicalColumns, Records: make([]dataset.Record, len(rows))}
	for i, r := range rows {
		t.Records[i] = dataset.Record{
			Year: r.Year, Month: r.Month,
			Department: r.Department, Province: r.Province, District: r.District,
			Modality: r.Modality, Count: r.Count,
		}
	}
	return t, nil
}

// Source returns the metadata of the currently stored dataset.
func (s *Store) Source(ctx context.Context) (dataset.SourceInfo, error) {
	var row struct {
		Path    string `db:"path"`
		Size    int64  `db:"size"`
		ModTime string `db:"mod_time"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT path, size, mod_time FROM sources ORDER BY id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return dataset.SourceInfo{}, dataset.ErrSourceNotFound
	}
	if err != nil {
		return dataset.SourceInfo{}, fmt.Errorf("store: source: %w", err)
	}
	mt, _ := time.Parse(time.RFC3339Nano, row.ModTime)
	return dataset.SourceInfo{Path: row.Path, Size: row.Size, ModTime: mt}, nil
}
