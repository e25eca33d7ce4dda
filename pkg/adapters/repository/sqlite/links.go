package sqlite

import (
	"context"
	"fmt"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

type linkTable struct {
	name   string
	column string
}

var linkTables = map[domain.ItemType]linkTable{
	domain.ItemTypeDashboard: {name: "collection_dashboards", column: "dashboard_id"},
	domain.ItemTypeChart:     {name: "collection_charts", column: "chart_id"},
	domain.ItemTypeDataset:   {name: "collection_datasets", column: "dataset_id"},
}

func tableFor(itemType domain.ItemType) (linkTable, error) {
	t, ok := linkTables[itemType]
	if !ok {
		return linkTable{}, domain.NewValidationError("type", fmt.Sprintf("invalid item type %q", itemType))
	}
	return t, nil
}

func (r *SQLiteRepository) ItemLinkExists(ctx context.Context, collectionID int64, itemType domain.ItemType, itemID int64) (bool, error) {
	t, err := tableFor(itemType)
	if err != nil {
		return false, err
	}
	var exists int
	query := `SELECT EXISTS (SELECT 1 FROM ` + t.name + ` WHERE collection_id = ? AND ` + t.column + ` = ?)`
	if err := r.q.QueryRowContext(ctx, query, collectionID, itemID).Scan(&exists); err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (r *SQLiteRepository) AddItemLink(ctx context.Context, link *domain.ItemLink) error {
	t, err := tableFor(link.ItemType)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + t.name + ` (collection_id, ` + t.column + `, created_by_fk, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query, link.CollectionID, link.ItemID, link.CreatedByID, link.CreatedAt)
	if err != nil {
		return translateError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

func (r *SQLiteRepository) RemoveItemLink(ctx context.Context, collectionID int64, itemType domain.ItemType, itemID int64) (bool, error) {
	t, err := tableFor(itemType)
	if err != nil {
		return false, err
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE collection_id = ? AND `+t.column+` = ?`, collectionID, itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListItemLinks returns links of one type in insertion order. A limit of zero or less
// means no limit.
func (r *SQLiteRepository) ListItemLinks(ctx context.Context, collectionID int64, itemType domain.ItemType, limit, offset int) ([]domain.ItemLink, error) {
	t, err := tableFor(itemType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, collection_id, ` + t.column + `, created_by_fk, created_at FROM ` + t.name +
		` WHERE collection_id = ? ORDER BY id ASC LIMIT ? OFFSET ?`
	rows, err := r.q.QueryContext(ctx, query, collectionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []domain.ItemLink{}
	for rows.Next() {
		l := domain.ItemLink{ItemType: itemType}
		if err := rows.Scan(&l.ID, &l.CollectionID, &l.ItemID, &l.CreatedByID, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// CountItemLinks counts the direct links of every type.
func (r *SQLiteRepository) CountItemLinks(ctx context.Context, collectionID int64) (int, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM collection_dashboards WHERE collection_id = ?) +
		(SELECT COUNT(*) FROM collection_charts WHERE collection_id = ?) +
		(SELECT COUNT(*) FROM collection_datasets WHERE collection_id = ?)`
	var count int
	err := r.q.QueryRowContext(ctx, query, collectionID, collectionID, collectionID).Scan(&count)
	return count, err
}

// AdjustItemCount adds delta to the cached count, never going below zero.
func (r *SQLiteRepository) AdjustItemCount(ctx context.Context, collectionID int64, delta int) error {
	_, err := r.q.ExecContext(ctx, `UPDATE collections SET item_count = MAX(item_count + ?, 0) WHERE id = ?`, delta, collectionID)
	return err
}

func (r *SQLiteRepository) SetItemCount(ctx context.Context, collectionID int64, count int) error {
	_, err := r.q.ExecContext(ctx, `UPDATE collections SET item_count = ? WHERE id = ?`, count, collectionID)
	return err
}

func (r *SQLiteRepository) ListPermissions(ctx context.Context, collectionID int64) ([]domain.CollectionPermission, error) {
	query := `SELECT id, collection_id, role_id, can_view, can_curate, created_by_fk, created_at
			  FROM collection_permissions WHERE collection_id = ? ORDER BY role_id ASC`
	rows, err := r.q.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []domain.CollectionPermission{}
	for rows.Next() {
		var p domain.CollectionPermission
		if err := rows.Scan(&p.ID, &p.CollectionID, &p.RoleID, &p.CanView, &p.CanCurate, &p.CreatedByID, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// UpsertPermission inserts the grant or replaces the flags of the existing (collection, role) row.
func (r *SQLiteRepository) UpsertPermission(ctx context.Context, p *domain.CollectionPermission) error {
	query := `INSERT INTO collection_permissions (collection_id, role_id, can_view, can_curate, created_by_fk, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT (collection_id, role_id) DO UPDATE SET can_view = excluded.can_view, can_curate = excluded.can_curate`
	_, err := r.q.ExecContext(ctx, query, p.CollectionID, p.RoleID, p.CanView, p.CanCurate, p.CreatedByID, p.CreatedAt)
	if err != nil {
		return translateError(err)
	}
	return r.q.QueryRowContext(ctx, `SELECT id FROM collection_permissions WHERE collection_id = ? AND role_id = ?`,
		p.CollectionID, p.RoleID).Scan(&p.ID)
}
