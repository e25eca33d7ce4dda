package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	} else {
		dbURL = withForeignKeys(dbURL)
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	// A shared in-memory database lives only as long as one connection holds it.
	if strings.Contains(dbURL, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteRepository{db: db, q: db}, nil
}

func withForeignKeys(dbURL string) string {
	if strings.Contains(dbURL, "foreign_keys") {
		return dbURL
	}
	sep := "?"
	if strings.Contains(dbURL, "?") {
		sep = "&"
	}
	return dbURL + sep + "_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// DB exposes the underlying pool for callers that seed host catalog tables.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		oauth_provider TEXT,
		oauth_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		parent_id INTEGER,
		is_official INTEGER NOT NULL DEFAULT 0,
		item_count INTEGER NOT NULL DEFAULT 0,
		created_by_fk INTEGER,
		changed_by_fk INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(parent_id) REFERENCES collections(id)
	);
	CREATE INDEX IF NOT EXISTS idx_collections_parent_id ON collections(parent_id);
	CREATE INDEX IF NOT EXISTS idx_collections_name ON collections(name);

	CREATE TABLE IF NOT EXISTS collection_dashboards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL,
		dashboard_id INTEGER NOT NULL,
		created_by_fk INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (collection_id, dashboard_id),
		FOREIGN KEY(collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS collection_charts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL,
		chart_id INTEGER NOT NULL,
		created_by_fk INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (collection_id, chart_id),
		FOREIGN KEY(collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS collection_datasets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL,
		dataset_id INTEGER NOT NULL,
		created_by_fk INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (collection_id, dataset_id),
		FOREIGN KEY(collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS collection_permissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL,
		can_view INTEGER NOT NULL DEFAULT 1,
		can_curate INTEGER NOT NULL DEFAULT 0,
		created_by_fk INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (collection_id, role_id),
		FOREIGN KEY(collection_id) REFERENCES collections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS databases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		database_name TEXT NOT NULL UNIQUE,
		backend TEXT NOT NULL DEFAULT 'sqlite',
		dsn TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS dashboards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dashboard_title TEXT NOT NULL,
		slug TEXT UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS charts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slice_name TEXT NOT NULL,
		viz_type TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS datasets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		schema TEXT,
		database_id INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(database_id) REFERENCES databases(id)
	);
	`
	_, err := db.Exec(query)
	return err
}

// InTx runs fn against a repository bound to one transaction. Calls made on an
// already transaction-bound repository reuse the open transaction.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(repo ports.CollectionRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&SQLiteRepository{db: r.db, q: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// translateError maps store constraint violations onto domain errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: collections.slug"):
		return fmt.Errorf("%w: %v", domain.ErrSlugExists, err)
	case strings.Contains(msg, "UNIQUE constraint failed: collection_dashboards"),
		strings.Contains(msg, "UNIQUE constraint failed: collection_charts"),
		strings.Contains(msg, "UNIQUE constraint failed: collection_datasets"):
		return fmt.Errorf("%w: %v", domain.ErrItemAlreadyExists, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return err
}

const collectionColumns = `id, uuid, name, slug, description, parent_id, is_official, item_count,
	created_by_fk, changed_by_fk, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(s scanner) (*domain.Collection, error) {
	var c domain.Collection
	err := s.Scan(&c.ID, &c.UUID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.IsOfficial,
		&c.ItemCount, &c.CreatedByID, &c.ChangedByID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepository) queryCollections(ctx context.Context, query string, args ...any) ([]domain.Collection, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

func (r *SQLiteRepository) CreateCollection(ctx context.Context, collection *domain.Collection) error {
	query := `INSERT INTO collections (uuid, name, slug, description, parent_id, is_official, item_count,
			  created_by_fk, changed_by_fk, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.q.ExecContext(ctx, query, collection.UUID, collection.Name, collection.Slug, collection.Description,
		collection.ParentID, collection.IsOfficial, collection.ItemCount, collection.CreatedByID, collection.ChangedByID,
		collection.CreatedAt, collection.UpdatedAt)
	if err != nil {
		return translateError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	collection.ID = id
	return nil
}

func (r *SQLiteRepository) GetCollection(ctx context.Context, id int64) (*domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = ?`
	c, err := scanCollection(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *SQLiteRepository) GetCollectionBySlug(ctx context.Context, slug string) (*domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE slug = ?`
	c, err := scanCollection(r.q.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *SQLiteRepository) GetParentID(ctx context.Context, id int64) (*int64, bool, error) {
	var parentID *int64
	err := r.q.QueryRowContext(ctx, `SELECT parent_id FROM collections WHERE id = ?`, id).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return parentID, true, nil
}

func (r *SQLiteRepository) UpdateCollection(ctx context.Context, collection *domain.Collection) error {
	query := `UPDATE collections SET name = ?, slug = ?, description = ?, parent_id = ?, is_official = ?,
			  changed_by_fk = ?, updated_at = ? WHERE id = ?`
	_, err := r.q.ExecContext(ctx, query, collection.Name, collection.Slug, collection.Description, collection.ParentID,
		collection.IsOfficial, collection.ChangedByID, collection.UpdatedAt, collection.ID)
	return translateError(err)
}

func (r *SQLiteRepository) ReparentChildren(ctx context.Context, parentID int64, newParentID *int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE collections SET parent_id = ? WHERE parent_id = ?`, newParentID, parentID)
	if err != nil {
		return 0, translateError(err)
	}
	return res.RowsAffected()
}

// DeleteCollection removes the row together with its item links and permission rows.
// Children must be re-parented beforehand.
func (r *SQLiteRepository) DeleteCollection(ctx context.Context, id int64) error {
	for _, table := range []string{"collection_dashboards", "collection_charts", "collection_datasets", "collection_permissions"} {
		if _, err := r.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE collection_id = ?`, id); err != nil {
			return err
		}
	}
	_, err := r.q.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	return translateError(err)
}

func (r *SQLiteRepository) ListRootCollections(ctx context.Context) ([]domain.Collection, error) {
	return r.queryCollections(ctx, `SELECT `+collectionColumns+` FROM collections WHERE parent_id IS NULL ORDER BY name ASC, id ASC`)
}

func (r *SQLiteRepository) ListChildren(ctx context.Context, parentID int64) ([]domain.Collection, error) {
	return r.queryCollections(ctx, `SELECT `+collectionColumns+` FROM collections WHERE parent_id = ? ORDER BY name ASC, id ASC`, parentID)
}

func collectionFilters(filters map[string]interface{}) (string, []any) {
	var clauses []string
	var args []any
	if search, ok := filters["search"].(string); ok && search != "" {
		clauses = append(clauses, "(name LIKE ? OR slug LIKE ?)")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	if parentID, ok := filters["parent_id"].(int64); ok {
		clauses = append(clauses, "parent_id = ?")
		args = append(args, parentID)
	}
	if official, ok := filters["is_official"].(bool); ok {
		clauses = append(clauses, "is_official = ?")
		args = append(args, official)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *SQLiteRepository) ListCollections(ctx context.Context, limit, offset int, filters map[string]interface{}) ([]domain.Collection, error) {
	where, args := collectionFilters(filters)
	query := `SELECT ` + collectionColumns + ` FROM collections` + where + ` ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return r.queryCollections(ctx, query, args...)
}

func (r *SQLiteRepository) CountCollections(ctx context.Context, filters map[string]interface{}) (int64, error) {
	where, args := collectionFilters(filters)
	var count int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`+where, args...).Scan(&count)
	return count, err
}

// Dump returns every collection ordered by id, so parents created earlier come first.
func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Collection, error) {
	return r.queryCollections(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY id ASC`)
}

// Ensure interface compliance
var _ ports.CollectionRepository = (*SQLiteRepository)(nil)
