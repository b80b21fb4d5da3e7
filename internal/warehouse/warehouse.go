// Package warehouse loads the parquet snapshot into an in-memory DuckDB
// database and exposes it as a read-only query surface for the validator
// and the insight pipelines.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Config holds loader configuration.
type Config struct {
	// DataDir is the directory containing the parquet files.
	DataDir string
	// StoreCities is the store-location allowlist (lower-case city names).
	// Empty means all stores.
	StoreCities []string
	// Logger is the structured logger (uses discard if nil).
	Logger *slog.Logger
}

// Warehouse is an immutable snapshot of the source data. After Open returns,
// only SELECTs run against it; filters are expressed per query, never by
// mutating the loaded tables.
type Warehouse struct {
	db           *sql.DB
	logger       *slog.Logger
	dataDir      string
	cities       []string
	rowCounts    map[string]int64
	orphanCounts map[string]int64
	loadedAt     time.Time
}

// Open loads the snapshot under cfg.DataDir into a fresh in-memory DuckDB.
// It returns a *DataSourceError for a missing or unreadable file and a
// *SchemaError when a required column is absent.
func Open(ctx context.Context, cfg Config) (*Warehouse, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	w := &Warehouse{
		db:           db,
		logger:       logger,
		dataDir:      cfg.DataDir,
		cities:       cfg.StoreCities,
		rowCounts:    make(map[string]int64),
		orphanCounts: make(map[string]int64),
		loadedAt:     time.Now().UTC(),
	}

	start := time.Now()
	if err := w.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("snapshot loaded",
		"data_dir", cfg.DataDir,
		"cities", cfg.StoreCities,
		"tables", len(w.rowCounts),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return w, nil
}

// Close releases the underlying database.
func (w *Warehouse) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// Query runs a SELECT against the snapshot.
func (w *Warehouse) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return w.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a single-row SELECT against the snapshot.
func (w *Warehouse) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return w.db.QueryRowContext(ctx, query, args...)
}

// DataDir returns the directory the snapshot was loaded from.
func (w *Warehouse) DataDir() string {
	return w.dataDir
}

// LoadedAt returns when the snapshot was loaded.
func (w *Warehouse) LoadedAt() time.Time {
	return w.loadedAt
}

// RowCount returns the loaded row count for a table (0 for unknown tables).
func (w *Warehouse) RowCount(table string) int64 {
	return w.rowCounts[table]
}

// OrphanCount returns how many rows of a table were excluded during load
// because their store identifier matched no store record at all.
func (w *Warehouse) OrphanCount(table string) int64 {
	return w.orphanCounts[table]
}

// Tables returns the loaded table names in sorted order.
func (w *Warehouse) Tables() []string {
	names := make([]string, 0, len(w.rowCounts))
	for name := range w.rowCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store is one deduplicated store record.
type Store struct {
	ID        string
	Name      string
	City      string
	Address   string
	ZIPCode   string
	Latitude  float64
	Longitude float64
}

// Stores returns the deduplicated, allowlisted store records.
func (w *Warehouse) Stores(ctx context.Context) ([]Store, error) {
	// ZIP and coordinate columns arrive as whatever the parquet writer
	// chose (ints, DECIMALs); cast so scanning stays type-stable.
	rows, err := w.db.QueryContext(ctx, `
		SELECT STORE_ID, STORE_NAME, CITY, STREET_ADDRESS,
		       CAST(ZIP_CODE AS VARCHAR),
		       CAST(LATITUDE AS DOUBLE), CAST(LONGITUDE AS DOUBLE)
		FROM stores
		ORDER BY STORE_ID`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stores []Store
	for rows.Next() {
		var s Store
		var name, city, addr, zip sql.NullString
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&s.ID, &name, &city, &addr, &zip, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		s.Name = name.String
		s.City = city.String
		s.Address = addr.String
		s.ZIPCode = zip.String
		s.Latitude = lat.Float64
		s.Longitude = lon.Float64
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stores: %w", err)
	}
	return stores, nil
}

// StoreByID returns a single store, or nil when no such store exists.
func (w *Warehouse) StoreByID(ctx context.Context, id string) (*Store, error) {
	stores, err := w.Stores(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].ID == id {
			return &stores[i], nil
		}
	}
	return nil, nil
}
