package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
)

// The catalog tables belong to the host application. Collections only read them,
// the Create* helpers exist for seeding.

func (r *SQLiteRepository) GetDashboard(ctx context.Context, id int64) (*domain.Dashboard, error) {
	var d domain.Dashboard
	err := r.q.QueryRowContext(ctx, `SELECT id, dashboard_title, slug, created_at FROM dashboards WHERE id = ?`, id).
		Scan(&d.ID, &d.DashboardTitle, &d.Slug, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteRepository) GetChart(ctx context.Context, id int64) (*domain.Chart, error) {
	var c domain.Chart
	err := r.q.QueryRowContext(ctx, `SELECT id, slice_name, viz_type, created_at FROM charts WHERE id = ?`, id).
		Scan(&c.ID, &c.SliceName, &c.VizType, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepository) GetDataset(ctx context.Context, id int64) (*domain.Dataset, error) {
	query := `SELECT ds.id, ds.table_name, ds.schema, ds.database_id, db.database_name, ds.created_at
			  FROM datasets ds LEFT JOIN databases db ON db.id = ds.database_id
			  WHERE ds.id = ?`
	var d domain.Dataset
	err := r.q.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.TableName, &d.Schema, &d.DatabaseID, &d.DatabaseName, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteRepository) GetDatabase(ctx context.Context, id int64) (*domain.Database, error) {
	var d domain.Database
	err := r.q.QueryRowContext(ctx, `SELECT id, database_name, backend, dsn FROM databases WHERE id = ?`, id).
		Scan(&d.ID, &d.DatabaseName, &d.Backend, &d.DSN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteRepository) CreateDashboard(ctx context.Context, d *domain.Dashboard) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return r.insert(ctx, &d.ID, `INSERT INTO dashboards (dashboard_title, slug, created_at) VALUES (?, ?, ?)`,
		d.DashboardTitle, d.Slug, d.CreatedAt)
}

func (r *SQLiteRepository) CreateChart(ctx context.Context, c *domain.Chart) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return r.insert(ctx, &c.ID, `INSERT INTO charts (slice_name, viz_type, created_at) VALUES (?, ?, ?)`,
		c.SliceName, c.VizType, c.CreatedAt)
}

func (r *SQLiteRepository) CreateDataset(ctx context.Context, d *domain.Dataset) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return r.insert(ctx, &d.ID, `INSERT INTO datasets (table_name, schema, database_id, created_at) VALUES (?, ?, ?, ?)`,
		d.TableName, d.Schema, d.DatabaseID, d.CreatedAt)
}

func (r *SQLiteRepository) CreateDatabase(ctx context.Context, d *domain.Database) error {
	if d.Backend == "" {
		d.Backend = "sqlite"
	}
	return r.insert(ctx, &d.ID, `INSERT INTO databases (database_name, backend, dsn) VALUES (?, ?, ?)`,
		d.DatabaseName, d.Backend, d.DSN)
}

func (r *SQLiteRepository) insert(ctx context.Context, id *int64, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	*id, err = res.LastInsertId()
	return err
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SchemaConnector opens registered sqlite/libsql databases for schema inspection.
type SchemaConnector struct{}

func NewSchemaConnector() *SchemaConnector {
	return &SchemaConnector{}
}

func (SchemaConnector) Connect(ctx context.Context, database *domain.Database) (ports.SchemaInspector, error) {
	if database.Dialect() != "sqlite" {
		return nil, fmt.Errorf("unsupported backend %q", database.Backend)
	}
	if database.DSN == "" {
		return nil, fmt.Errorf("database %q has no connection string", database.DatabaseName)
	}

	driverName := "sqlite"
	if strings.Contains(database.DSN, "libsql://") || strings.Contains(database.DSN, "wss://") {
		driverName = "libsql"
	}
	db, err := sql.Open(driverName, database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &schemaInspector{db: db}, nil
}

type schemaInspector struct {
	db *sql.DB
}

func (s *schemaInspector) TableNames(ctx context.Context, schema string) ([]string, error) {
	if !identPattern.MatchString(schema) {
		return nil, domain.NewValidationError("schema", fmt.Sprintf("invalid schema name %q", schema))
	}
	query := `SELECT name FROM "` + schema + `".sqlite_master
			  WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *schemaInspector) Columns(ctx context.Context, schema, table string) ([]domain.Column, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid`, table, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (s *schemaInspector) Close() error {
	return s.db.Close()
}

var (
	_ ports.ItemCatalog     = (*SQLiteRepository)(nil)
	_ ports.SchemaConnector = (*SchemaConnector)(nil)
)
