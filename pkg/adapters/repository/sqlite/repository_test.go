package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func insertCollection(t *testing.T, repo *SQLiteRepository, name, slug string, parentID *int64) *domain.Collection {
	t.Helper()
	now := time.Now()
	c := &domain.Collection{
		UUID:      uuid.NewString(),
		Name:      name,
		Slug:      slug,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreateCollection(context.Background(), c))
	return c
}

func TestCollectionCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	desc := "quarterly numbers"
	root := insertCollection(t, repo, "Sales", "sales", nil)
	require.NotZero(t, root.ID)

	got, err := repo.GetCollection(ctx, root.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sales", got.Name)
	assert.Nil(t, got.ParentID)
	assert.Nil(t, got.Description)

	got.Description = &desc
	got.IsOfficial = true
	require.NoError(t, repo.UpdateCollection(ctx, got))

	bySlug, err := repo.GetCollectionBySlug(ctx, "sales")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, desc, *bySlug.Description)
	assert.True(t, bySlug.IsOfficial)

	missing, err := repo.GetCollection(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	parentID, found, err := repo.GetParentID(ctx, 999)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, parentID)
}

func TestCreateCollectionTranslatesConstraints(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	insertCollection(t, repo, "Sales", "sales", nil)

	dup := &domain.Collection{UUID: uuid.NewString(), Name: "Other", Slug: "sales", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err := repo.CreateCollection(ctx, dup)
	assert.True(t, errors.Is(err, domain.ErrSlugExists), "got %v", err)

	missingParent := int64(404)
	orphan := &domain.Collection{UUID: uuid.NewString(), Name: "Orphan", Slug: "orphan", ParentID: &missingParent, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err = repo.CreateCollection(ctx, orphan)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func TestListRootAndChildrenOrderedByName(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	zeta := insertCollection(t, repo, "Zeta", "zeta", nil)
	insertCollection(t, repo, "Alpha", "alpha", nil)
	insertCollection(t, repo, "Child B", "child-b", &zeta.ID)
	insertCollection(t, repo, "Child A", "child-a", &zeta.ID)

	roots, err := repo.ListRootCollections(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Alpha", roots[0].Name)
	assert.Equal(t, "Zeta", roots[1].Name)

	children, err := repo.ListChildren(ctx, zeta.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "child-a", children[0].Slug)
	assert.Equal(t, "child-b", children[1].Slug)

	total, err := repo.CountCollections(ctx, map[string]interface{}{"search": "child"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	page, err := repo.ListCollections(ctx, 1, 1, map[string]interface{}{"search": "child"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "child-b", page[0].Slug)
}

func TestItemLinks(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := insertCollection(t, repo, "Sales", "sales", nil)

	link := &domain.ItemLink{CollectionID: c.ID, ItemType: domain.ItemTypeChart, ItemID: 7, CreatedAt: time.Now()}
	require.NoError(t, repo.AddItemLink(ctx, link))
	assert.NotZero(t, link.ID)

	dup := &domain.ItemLink{CollectionID: c.ID, ItemType: domain.ItemTypeChart, ItemID: 7, CreatedAt: time.Now()}
	err := repo.AddItemLink(ctx, dup)
	assert.True(t, errors.Is(err, domain.ErrItemAlreadyExists), "got %v", err)

	// Same id under another type is a different item.
	require.NoError(t, repo.AddItemLink(ctx, &domain.ItemLink{CollectionID: c.ID, ItemType: domain.ItemTypeDashboard, ItemID: 7, CreatedAt: time.Now()}))

	exists, err := repo.ItemLinkExists(ctx, c.ID, domain.ItemTypeChart, 7)
	require.NoError(t, err)
	assert.True(t, exists)

	count, err := repo.CountItemLinks(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	removed, err := repo.RemoveItemLink(ctx, c.ID, domain.ItemTypeChart, 7)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveItemLink(ctx, c.ID, domain.ItemTypeChart, 7)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.ItemLinkExists(ctx, c.ID, domain.ItemType("report"), 1)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestListItemLinksPagination(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := insertCollection(t, repo, "Sales", "sales", nil)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repo.AddItemLink(ctx, &domain.ItemLink{CollectionID: c.ID, ItemType: domain.ItemTypeDataset, ItemID: i, CreatedAt: time.Now()}))
	}

	all, err := repo.ListItemLinks(ctx, c.ID, domain.ItemTypeDataset, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	page, err := repo.ListItemLinks(ctx, c.ID, domain.ItemTypeDataset, 2, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.EqualValues(t, 4, page[0].ItemID)
	assert.EqualValues(t, 5, page[1].ItemID)
}

func TestAdjustItemCountFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := insertCollection(t, repo, "Sales", "sales", nil)

	require.NoError(t, repo.AdjustItemCount(ctx, c.ID, 2))
	require.NoError(t, repo.AdjustItemCount(ctx, c.ID, -5))

	got, err := repo.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ItemCount)
}

func TestDeleteCollectionRemovesLinksAndPermissions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	parent := insertCollection(t, repo, "Parent", "parent", nil)
	c := insertCollection(t, repo, "Doomed", "doomed", &parent.ID)
	child := insertCollection(t, repo, "Kid", "kid", &c.ID)

	require.NoError(t, repo.AddItemLink(ctx, &domain.ItemLink{CollectionID: c.ID, ItemType: domain.ItemTypeDashboard, ItemID: 1, CreatedAt: time.Now()}))
	require.NoError(t, repo.UpsertPermission(ctx, &domain.CollectionPermission{CollectionID: c.ID, RoleID: 1, CanView: true, CreatedAt: time.Now()}))

	err := repo.InTx(ctx, func(tx ports.CollectionRepository) error {
		if _, err := tx.ReparentChildren(ctx, c.ID, c.ParentID); err != nil {
			return err
		}
		return tx.DeleteCollection(ctx, c.ID)
	})
	require.NoError(t, err)

	kid, err := repo.GetCollection(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, kid.ParentID)
	assert.Equal(t, parent.ID, *kid.ParentID)

	count, err := repo.CountItemLinks(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	perms, err := repo.ListPermissions(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx ports.CollectionRepository) error {
		c := &domain.Collection{UUID: uuid.NewString(), Name: "Temp", Slug: "temp", CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := tx.CreateCollection(ctx, c); err != nil {
			return err
		}
		// Nested calls join the open transaction.
		return tx.InTx(ctx, func(ports.CollectionRepository) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetCollectionBySlug(ctx, "temp")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertPermission(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := insertCollection(t, repo, "Sales", "sales", nil)

	p := &domain.CollectionPermission{CollectionID: c.ID, RoleID: 3, CanView: true, CreatedAt: time.Now()}
	require.NoError(t, repo.UpsertPermission(ctx, p))
	firstID := p.ID

	p2 := &domain.CollectionPermission{CollectionID: c.ID, RoleID: 3, CanView: true, CanCurate: true, CreatedAt: time.Now()}
	require.NoError(t, repo.UpsertPermission(ctx, p2))
	assert.Equal(t, firstID, p2.ID)

	perms, err := repo.ListPermissions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.True(t, perms[0].CanCurate)
}

func TestCatalogLookups(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	slug := "world-health"
	dash := &domain.Dashboard{DashboardTitle: "World Health", Slug: &slug}
	require.NoError(t, repo.CreateDashboard(ctx, dash))
	db := &domain.Database{DatabaseName: "examples", DSN: "file:examples.db"}
	require.NoError(t, repo.CreateDatabase(ctx, db))
	schema := "main"
	ds := &domain.Dataset{TableName: "births", Schema: &schema, DatabaseID: &db.ID}
	require.NoError(t, repo.CreateDataset(ctx, ds))

	gotDash, err := repo.GetDashboard(ctx, dash.ID)
	require.NoError(t, err)
	require.NotNil(t, gotDash)
	assert.Equal(t, "/superset/dashboard/world-health/", gotDash.URL())

	gotDS, err := repo.GetDataset(ctx, ds.ID)
	require.NoError(t, err)
	require.NotNil(t, gotDS)
	require.NotNil(t, gotDS.DatabaseName)
	assert.Equal(t, "examples", *gotDS.DatabaseName)

	chart, err := repo.GetChart(ctx, 12345)
	require.NoError(t, err)
	assert.Nil(t, chart)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := &domain.User{Email: "Ada@Example.com", Name: "Ada", IsAdmin: true, OAuthProvider: "google", OAuthID: "g-1"}
	require.NoError(t, repo.CreateUser(ctx, u))
	require.NotZero(t, u.ID)

	got, err := repo.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "google", got.OAuthProvider)

	require.NoError(t, repo.UpdateUserOAuth(ctx, u.ID, "google", "g-2"))
	byID, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "g-2", byID.OAuthID)

	nobody, err := repo.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, nobody)
}
