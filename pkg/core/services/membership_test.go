package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-collections/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

func seedDashboards(t *testing.T, repo *sqlite.SQLiteRepository, n int) []int64 {
	t.Helper()
	var ids []int64
	for i := 0; i < n; i++ {
		d := &domain.Dashboard{DashboardTitle: "Dashboard"}
		require.NoError(t, repo.CreateDashboard(context.Background(), d))
		ids = append(ids, d.ID)
	}
	return ids
}

func itemCount(t *testing.T, s *CollectionService, id int64) int {
	t.Helper()
	detail, err := s.GetCollection(context.Background(), id)
	require.NoError(t, err)
	return detail.ItemCount
}

func TestAddItemTwice(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)
	ref := domain.ItemRef{Type: domain.ItemTypeDashboard, ID: 42}

	require.NoError(t, s.AddItem(ctx, c.ID, ref, nil))
	err := s.AddItem(ctx, c.ID, ref, nil)
	assert.ErrorIs(t, err, domain.ErrItemAlreadyExists)
	assert.Equal(t, 1, itemCount(t, s, c.ID))
}

func TestAddItemErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)

	err := s.AddItem(ctx, 9999, domain.ItemRef{Type: domain.ItemTypeChart, ID: 1}, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = s.AddItem(ctx, c.ID, domain.ItemRef{Type: "report", ID: 1}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeChart, ID: 0}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddItemEnforcesLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	c := create(t, s, "Full", "full", nil)

	for i := 1; i <= domain.MaxItemsPerCollection; i++ {
		require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeChart, ID: int64(i)}, nil))
	}
	err := s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDataset, ID: 1}, nil)
	assert.ErrorIs(t, err, domain.ErrItemLimitExceeded)
	assert.Equal(t, domain.MaxItemsPerCollection, itemCount(t, s, c.ID))
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)
	ref := domain.ItemRef{Type: domain.ItemTypeDataset, ID: 8}
	require.NoError(t, s.AddItem(ctx, c.ID, ref, nil))

	err := s.RemoveItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDataset, ID: 9})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Equal(t, 1, itemCount(t, s, c.ID))

	require.NoError(t, s.RemoveItem(ctx, c.ID, ref))
	assert.Equal(t, 0, itemCount(t, s, c.ID))

	err = s.RemoveItem(ctx, c.ID, ref)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Equal(t, 0, itemCount(t, s, c.ID))

	err = s.RemoveItem(ctx, 9999, ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetItemsDashboardScenario(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)
	ids := seedDashboards(t, repo, 1)

	require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDashboard, ID: ids[0]}, nil))

	items, err := s.GetItems(ctx, c.ID, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, items.Dashboards, 1)
	assert.Equal(t, ids[0], items.Dashboards[0].ID)
	assert.Equal(t, 1, items.TotalCount)
	assert.Empty(t, items.Charts)
	assert.Empty(t, items.Datasets)
}

func TestGetItemsPaginatesPerBucket(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)

	for _, id := range seedDashboards(t, repo, 3) {
		require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDashboard, ID: id}, nil))
	}
	for i := 0; i < 3; i++ {
		ch := &domain.Chart{SliceName: "Chart", VizType: "table"}
		require.NoError(t, repo.CreateChart(ctx, ch))
		require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeChart, ID: ch.ID}, nil))
	}
	db := &domain.Database{DatabaseName: "examples"}
	require.NoError(t, repo.CreateDatabase(ctx, db))
	ds := &domain.Dataset{TableName: "births", DatabaseID: &db.ID}
	require.NoError(t, repo.CreateDataset(ctx, ds))
	require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDataset, ID: ds.ID}, nil))

	items, err := s.GetItems(ctx, c.ID, nil, 2, 0)
	require.NoError(t, err)
	assert.Len(t, items.Dashboards, 2)
	assert.Len(t, items.Charts, 2)
	require.Len(t, items.Datasets, 1)
	assert.Equal(t, "examples", *items.Datasets[0].DatabaseName)
	// Counts what was returned, not what is stored.
	assert.Equal(t, 5, items.TotalCount)

	items, err = s.GetItems(ctx, c.ID, nil, 2, 2)
	require.NoError(t, err)
	assert.Len(t, items.Dashboards, 1)
	assert.Len(t, items.Charts, 1)
	assert.Empty(t, items.Datasets)

	chart := domain.ItemTypeChart
	items, err = s.GetItems(ctx, c.ID, &chart, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, items.Dashboards)
	assert.Len(t, items.Charts, 3)
	assert.Equal(t, 3, items.TotalCount)
	assert.Contains(t, items.Charts[0].URL, "/explore/?slice_id=")
}

func TestGetItemsSkipsMissingCatalogEntries(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)
	ids := seedDashboards(t, repo, 1)

	require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDashboard, ID: ids[0]}, nil))
	require.NoError(t, s.AddItem(ctx, c.ID, domain.ItemRef{Type: domain.ItemTypeDashboard, ID: 777}, nil))

	items, err := s.GetItems(ctx, c.ID, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, items.Dashboards, 1)
	assert.Equal(t, 1, items.TotalCount)

	_, err = s.GetItems(ctx, 9999, nil, 0, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBatchAddAndRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	c := create(t, s, "Sales", "sales", nil)

	refs := []domain.ItemRef{
		{Type: domain.ItemTypeDashboard, ID: 1},
		{Type: domain.ItemTypeChart, ID: 2},
		{Type: domain.ItemTypeDashboard, ID: 1},
		{Type: "report", ID: 3},
	}
	res, err := s.AddItems(ctx, c.ID, refs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Errors, 2)
	assert.EqualValues(t, 1, res.Errors[0].ID)
	assert.Contains(t, res.Errors[0].Message, "already exists")
	assert.Equal(t, domain.ItemType("report"), res.Errors[1].Type)
	assert.Equal(t, 2, itemCount(t, s, c.ID))

	res, err = s.RemoveItems(ctx, c.ID, []domain.ItemRef{
		{Type: domain.ItemTypeChart, ID: 2},
		{Type: domain.ItemTypeChart, ID: 99},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Errors, 1)
	assert.EqualValues(t, 99, res.Errors[0].ID)
	assert.Equal(t, 1, itemCount(t, s, c.ID))

	_, err = s.AddItems(ctx, 9999, refs, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecomputeItemCount(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(t)
	root := create(t, s, "Root", "root", nil)
	child := create(t, s, "Child", "child", &root.ID)
	require.NoError(t, s.AddItem(ctx, child.ID, domain.ItemRef{Type: domain.ItemTypeChart, ID: 1}, nil))

	// Drift both cached counts.
	require.NoError(t, repo.SetItemCount(ctx, child.ID, 7))
	require.NoError(t, repo.SetItemCount(ctx, root.ID, 4))

	require.NoError(t, s.RecomputeItemCount(ctx, child.ID))
	assert.Equal(t, 1, itemCount(t, s, child.ID))
	assert.Equal(t, 0, itemCount(t, s, root.ID))

	assert.ErrorIs(t, s.RecomputeItemCount(ctx, 9999), domain.ErrNotFound)
}

func TestRecomputeItemCountStopsAtUnchanged(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestService(t)
	root := create(t, s, "Root", "root", nil)
	child := create(t, s, "Child", "child", &root.ID)
	require.NoError(t, s.AddItem(ctx, child.ID, domain.ItemRef{Type: domain.ItemTypeChart, ID: 1}, nil))

	// Child is accurate, root has drifted.
	require.NoError(t, repo.SetItemCount(ctx, root.ID, 4))

	require.NoError(t, s.RecomputeItemCount(ctx, child.ID))
	assert.Equal(t, 1, itemCount(t, s, child.ID))
	assert.Equal(t, 4, itemCount(t, s, root.ID))

	require.NoError(t, repo.SetItemCount(ctx, root.ID, 3))
	changed, err := s.RecomputeAllItemCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, 0, itemCount(t, s, root.ID))
}
