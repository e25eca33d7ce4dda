package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultRootCollectionName = "Our Analytics"
	DefaultRootCollectionSlug = "our-analytics"

	MaxNameLength        = 255
	MaxSlugLength        = 255
	MaxDescriptionLength = 1000

	// MaxTreeDepth caps tree traversal regardless of the depth a caller asks for.
	MaxTreeDepth          = 10
	MaxItemsPerCollection = 1000
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-_]+$`)

// Collection is a node in the collection forest. A nil ParentID marks a root.
type Collection struct {
	ID          int64     `json:"id"`
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	ParentID    *int64    `json:"parent_id"`
	IsOfficial  bool      `json:"is_official"`
	ItemCount   int       `json:"item_count"`
	CreatedByID *int64    `json:"created_by_fk,omitempty"`
	ChangedByID *int64    `json:"changed_by_fk,omitempty"`
	CreatedAt   time.Time `json:"created_on"`
	UpdatedAt   time.Time `json:"changed_on"`
}

// TreeDepth is the depth a tree read actually uses: maxDepth clamped to
// [0, MaxTreeDepth], or MaxTreeDepth when maxDepth is nil.
func TreeDepth(maxDepth *int) int {
	if maxDepth == nil || *maxDepth > MaxTreeDepth {
		return MaxTreeDepth
	}
	return max(*maxDepth, 0)
}

func (c *Collection) IsRoot() bool {
	return c.ParentID == nil
}

// CollectionDetail is a single collection with the fields computed from its ancestry and links.
type CollectionDetail struct {
	Collection
	IsRootNode     bool   `json:"is_root"`
	Depth          int    `json:"depth"`
	BreadcrumbPath string `json:"breadcrumb_path"`
	TotalItemCount int    `json:"total_item_count"`
}

// TreeNode is the read-only nested view produced by the tree builder.
type TreeNode struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    *string    `json:"description"`
	IsOfficial     bool       `json:"is_official"`
	ItemCount      int        `json:"item_count"`
	TotalItemCount int        `json:"total_item_count"`
	Depth          int        `json:"depth"`
	Children       []TreeNode `json:"children"`
}

// CollectionInput holds the fields accepted when creating a collection.
type CollectionInput struct {
	Name        string
	Slug        string
	Description *string
	ParentID    *int64
	IsOfficial  bool
}

// CollectionUpdate holds a partial update. Nil pointers are left untouched.
// ParentSet with a nil ParentID moves the collection to the root level.
type CollectionUpdate struct {
	Name        *string
	Slug        *string
	Description *string
	IsOfficial  *bool
	ParentSet   bool
	ParentID    *int64
}

// NormalizeName trims the name and checks its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewValidationError("name", "collection name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", NewValidationError("name", "collection name cannot exceed 255 characters")
	}
	return name, nil
}

// NormalizeSlug trims and lower-cases the slug, then checks its charset and length.
func NormalizeSlug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return "", NewValidationError("slug", "collection slug cannot be empty")
	}
	if utf8.RuneCountInString(slug) > MaxSlugLength {
		return "", NewValidationError("slug", "collection slug cannot exceed 255 characters")
	}
	if !slugPattern.MatchString(slug) {
		return "", NewValidationError("slug", "collection slug can only contain lowercase letters, numbers, hyphens, and underscores")
	}
	return slug, nil
}

func ValidateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return NewValidationError("description", "collection description cannot exceed 1000 characters")
	}
	return nil
}

// Normalize validates the create input in place.
func (in *CollectionInput) Normalize() error {
	name, err := NormalizeName(in.Name)
	if err != nil {
		return err
	}
	slug, err := NormalizeSlug(in.Slug)
	if err != nil {
		return err
	}
	if err := ValidateDescription(in.Description); err != nil {
		return err
	}
	in.Name = name
	in.Slug = slug
	return nil
}

// Normalize validates the supplied fields of the update in place.
func (u *CollectionUpdate) Normalize() error {
	if u.Name != nil {
		name, err := NormalizeName(*u.Name)
		if err != nil {
			return err
		}
		u.Name = &name
	}
	if u.Slug != nil {
		slug, err := NormalizeSlug(*u.Slug)
		if err != nil {
			return err
		}
		u.Slug = &slug
	}
	return ValidateDescription(u.Description)
}

// CollectionPermission is a per-role view/curate grant. Curate implies view.
type CollectionPermission struct {
	ID           int64     `json:"id"`
	CollectionID int64     `json:"collection_id"`
	RoleID       int64     `json:"role_id"`
	CanView      bool      `json:"can_view"`
	CanCurate    bool      `json:"can_curate"`
	CreatedByID  *int64    `json:"created_by_fk,omitempty"`
	CreatedAt    time.Time `json:"created_on"`
}

func (p *CollectionPermission) Validate() error {
	if p.RoleID < 1 {
		return NewValidationError("role_id", "role_id must be a positive integer")
	}
	if p.CanCurate && !p.CanView {
		return NewValidationError("can_curate", "curate permission requires view permission")
	}
	return nil
}

// User is the identity attached to a request. It is used for audit attribution and
// permission checks, never validated by the collection core.
type User struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	IsAdmin         bool      `json:"is_admin"`
	IsAuthenticated bool      `json:"-"`
	OAuthProvider   string    `json:"oauth_provider,omitempty"`
	OAuthID         string    `json:"-"`
	CreatedAt       time.Time `json:"created_on"`
}

// UserID returns a pointer suitable for created_by/changed_by columns.
func (u *User) UserID() *int64 {
	if u == nil || u.ID == 0 {
		return nil
	}
	id := u.ID
	return &id
}
