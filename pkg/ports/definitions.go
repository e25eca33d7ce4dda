package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

// CollectionRepository defines storage operations for collections, their item links
// and their permission rows. Lookups return (nil, nil) when the row does not exist.
type CollectionRepository interface {
	// InTx runs fn against a repository bound to a single transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(repo CollectionRepository) error) error

	CreateCollection(ctx context.Context, collection *domain.Collection) error
	GetCollection(ctx context.Context, id int64) (*domain.Collection, error)
	GetCollectionBySlug(ctx context.Context, slug string) (*domain.Collection, error)
	GetParentID(ctx context.Context, id int64) (parentID *int64, found bool, err error)
	UpdateCollection(ctx context.Context, collection *domain.Collection) error
	ReparentChildren(ctx context.Context, parentID int64, newParentID *int64) (int64, error)
	DeleteCollection(ctx context.Context, id int64) error
	ListRootCollections(ctx context.Context) ([]domain.Collection, error)
	ListChildren(ctx context.Context, parentID int64) ([]domain.Collection, error)
	ListCollections(ctx context.Context, limit, offset int, filters map[string]interface{}) ([]domain.Collection, error)
	CountCollections(ctx context.Context, filters map[string]interface{}) (int64, error)
	Dump(ctx context.Context) ([]domain.Collection, error)

	// Item links
	ItemLinkExists(ctx context.Context, collectionID int64, itemType domain.ItemType, itemID int64) (bool, error)
	AddItemLink(ctx context.Context, link *domain.ItemLink) error
	RemoveItemLink(ctx context.Context, collectionID int64, itemType domain.ItemType, itemID int64) (bool, error)
	ListItemLinks(ctx context.Context, collectionID int64, itemType domain.ItemType, limit, offset int) ([]domain.ItemLink, error)
	CountItemLinks(ctx context.Context, collectionID int64) (int, error)
	AdjustItemCount(ctx context.Context, collectionID int64, delta int) error
	SetItemCount(ctx context.Context, collectionID int64, count int) error

	// Permissions
	ListPermissions(ctx context.Context, collectionID int64) ([]domain.CollectionPermission, error)
	UpsertPermission(ctx context.Context, permission *domain.CollectionPermission) error
}

// ItemCatalog looks up the externally owned items a collection can reference.
// Each lookup returns (nil, nil) when the item does not exist.
type ItemCatalog interface {
	GetDashboard(ctx context.Context, id int64) (*domain.Dashboard, error)
	GetChart(ctx context.Context, id int64) (*domain.Chart, error)
	GetDataset(ctx context.Context, id int64) (*domain.Dataset, error)
	GetDatabase(ctx context.Context, id int64) (*domain.Database, error)
}

// UserRepository stores users created through OAuth login.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUserOAuth(ctx context.Context, id int64, provider, oauthID string) error
}

// PermissionOracle answers view/curate access for a user against a collection.
type PermissionOracle interface {
	CanView(ctx context.Context, user *domain.User, collectionID int64) bool
	CanCurate(ctx context.Context, user *domain.User, collectionID int64) bool
}

// CollectionService defines the business logic for collections
type CollectionService interface {
	CreateCollection(ctx context.Context, in domain.CollectionInput, creator *domain.User) (*domain.Collection, error)
	GetCollection(ctx context.Context, id int64) (*domain.CollectionDetail, error)
	UpdateCollection(ctx context.Context, id int64, update domain.CollectionUpdate, changer *domain.User) (*domain.Collection, error)
	DeleteCollection(ctx context.Context, id int64) (bool, error)
	ListCollections(ctx context.Context, page, limit int, search string) ([]domain.Collection, int64, error)
	GetTree(ctx context.Context, rootID *int64, maxDepth *int, user *domain.User) ([]domain.TreeNode, error)

	AddItem(ctx context.Context, collectionID int64, ref domain.ItemRef, creator *domain.User) error
	RemoveItem(ctx context.Context, collectionID int64, ref domain.ItemRef) error
	AddItems(ctx context.Context, collectionID int64, refs []domain.ItemRef, creator *domain.User) (*domain.BatchResult, error)
	RemoveItems(ctx context.Context, collectionID int64, refs []domain.ItemRef) (*domain.BatchResult, error)
	GetItems(ctx context.Context, collectionID int64, itemType *domain.ItemType, limit, offset int) (*domain.CollectionItems, error)
	RecomputeItemCount(ctx context.Context, collectionID int64) error

	GetPermissions(ctx context.Context, collectionID int64) ([]domain.CollectionPermission, error)
	SetPermissions(ctx context.Context, collectionID int64, permissions []domain.CollectionPermission, user *domain.User) (int, error)

	CanCreateCollection(ctx context.Context, user *domain.User, parentID *int64) bool
	CanView(ctx context.Context, user *domain.User, collectionID int64) bool
	CanCurate(ctx context.Context, user *domain.User, collectionID int64) bool
	CanManagePermissions(user *domain.User) bool
}

// LLMProvider sends one system+user prompt pair to a language model and returns its text.
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SchemaInspector lists tables and columns of one database connection.
type SchemaInspector interface {
	TableNames(ctx context.Context, schema string) ([]string, error)
	Columns(ctx context.Context, schema, table string) ([]domain.Column, error)
	Close() error
}

// SchemaConnector opens an inspector for a registered database.
type SchemaConnector interface {
	Connect(ctx context.Context, db *domain.Database) (SchemaInspector, error)
}

// AIService turns a natural-language question into a sanitized read-only query.
type AIService interface {
	GenerateSQL(ctx context.Context, req domain.SQLRequest) (string, error)
}
