package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kagami/internal/catalog"
)

const (
	dtypeFloat32 = "float32"
	dtypeFloat16 = "float16"
)

// SQLiteStorage stores catalogs as one row per record, keyed by (catalog, idx).
type SQLiteStorage struct {
	db *sql.DB
}

var _ CatalogStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalogs (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL,
		records INTEGER NOT NULL,
		dtype TEXT NOT NULL DEFAULT 'float32',
		has_ordinals INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		catalog TEXT NOT NULL,
		idx INTEGER NOT NULL,
		category_id TEXT NOT NULL,
		ordinal INTEGER,
		vector BLOB NOT NULL,
		PRIMARY KEY (catalog, idx),
		FOREIGN KEY (catalog) REFERENCES catalogs(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_category ON embeddings(catalog, category_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCatalog writes c under c.Name(), replacing a previous catalog of that name.
// Ordinals are written unless opts.OmitOrdinals is set.
func (s *SQLiteStorage) SaveCatalog(ctx context.Context, c *catalog.Catalog, opts catalog.WriteOptions) error {
	if c.Name() == "" {
		return errors.New("catalog name is required")
	}
	dtype := dtypeFloat32
	if opts.Float16 {
		dtype = dtypeFloat16
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteCatalog(ctx, tx, c.Name()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalogs (name, dimensions, records, dtype, has_ordinals, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name(), c.Dimensions(), c.Len(), dtype, !opts.OmitOrdinals, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to insert catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (catalog, idx, category_id, ordinal, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < c.Len(); i++ {
		id, _ := c.CategoryIDAt(i)
		var ord sql.NullInt64
		if !opts.OmitOrdinals {
			o, _ := c.Ordinal(i)
			ord = sql.NullInt64{Int64: int64(o), Valid: true}
		}
		var blob []byte
		if opts.Float16 {
			blob = catalog.EncodeFloat16s(c.Row(i))
		} else {
			blob = catalog.EncodeFloat32s(c.Row(i))
		}
		if _, err := stmt.ExecContext(ctx, c.Name(), i, id, ord, blob); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

const maxPrealloc = 1 << 16

// LoadCatalog reads the catalog called name in index order.
func (s *SQLiteStorage) LoadCatalog(ctx context.Context, name string) (*catalog.Catalog, error) {
	var dim, records int
	var dtype string
	var hasOrdinals bool
	err := s.db.QueryRowContext(ctx,
		`SELECT dimensions, records, dtype, has_ordinals FROM catalogs WHERE name = ?`, name,
	).Scan(&dim, &records, &dtype, &hasOrdinals)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if dtype != dtypeFloat32 && dtype != dtypeFloat16 {
		return nil, fmt.Errorf("catalog %s: unknown dtype %q", name, dtype)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, category_id, ordinal, vector FROM embeddings WHERE catalog = ? ORDER BY idx`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// records is only a capacity hint; the rows decide the length.
	capHint := min(max(records, 0), maxPrealloc)
	vectors := make([][]float32, 0, capHint)
	ids := make([]string, 0, capHint)
	var ordinals []int
	if hasOrdinals {
		ordinals = make([]int, 0, capHint)
	}
	for rows.Next() {
		var idx int
		var id string
		var ord sql.NullInt64
		var blob []byte
		if err := rows.Scan(&idx, &id, &ord, &blob); err != nil {
			return nil, err
		}
		if idx != len(ids) {
			return nil, fmt.Errorf("catalog %s: missing record %d", name, len(ids))
		}
		var vec []float32
		if dtype == dtypeFloat16 {
			vec = catalog.DecodeFloat16s(blob)
		} else {
			vec = catalog.DecodeFloat32s(blob)
		}
		vectors = append(vectors, vec)
		ids = append(ids, id)
		if hasOrdinals {
			if !ord.Valid {
				return nil, fmt.Errorf("catalog %s: record %d has no ordinal", name, idx)
			}
			ordinals = append(ordinals, int(ord.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) != records {
		return nil, fmt.Errorf("catalog %s: expected %d records, found %d", name, records, len(ids))
	}

	opts := []catalog.Option{catalog.WithName(name)}
	if hasOrdinals {
		opts = append(opts, catalog.WithOrdinals(ordinals))
	}
	c, err := catalog.Load(vectors, ids, opts...)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", name, err)
	}
	if c.Dimensions() != dim {
		return nil, fmt.Errorf("catalog %s: %w", name, &catalog.DimensionMismatchError{Expected: dim, Actual: c.Dimensions()})
	}
	return c, nil
}

// ListCatalogs returns every stored catalog ordered by name.
func (s *SQLiteStorage) ListCatalogs(ctx context.Context) ([]CatalogInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, dimensions, records, dtype, has_ordinals, created_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogInfo
	for rows.Next() {
		var info CatalogInfo
		if err := rows.Scan(&info.Name, &info.Dimensions, &info.Records, &info.DType, &info.Ordinals, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteCatalog removes a catalog and its records. Deleting a missing catalog is not an error.
func (s *SQLiteStorage) DeleteCatalog(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteCatalog(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteCatalog(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE catalog = ?`, name); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalogs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete catalog: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
