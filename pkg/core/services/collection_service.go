package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/monitoring"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

type CollectionService struct {
	repo    ports.CollectionRepository
	catalog ports.ItemCatalog
	oracle  ports.PermissionOracle
	logger  *zap.Logger
	now     func() time.Time
}

func NewCollectionService(repo ports.CollectionRepository, catalog ports.ItemCatalog, oracle ports.PermissionOracle, logger *zap.Logger) *CollectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if oracle == nil {
		oracle = StubPermissionOracle{}
	}
	return &CollectionService{
		repo:    repo,
		catalog: catalog,
		oracle:  oracle,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *CollectionService) record(operation string, err error) {
	monitoring.CollectionOperations.WithLabelValues(operation, monitoring.Outcome(err)).Inc()
}

func (s *CollectionService) CreateCollection(ctx context.Context, in domain.CollectionInput, creator *domain.User) (collection *domain.Collection, err error) {
	defer func() { s.record("create", err) }()

	if err := in.Normalize(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	now := s.now()
	collection = &domain.Collection{
		UUID:        id.String(),
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		ParentID:    in.ParentID,
		IsOfficial:  in.IsOfficial,
		CreatedByID: creator.UserID(),
		ChangedByID: creator.UserID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		existing, err := repo.GetCollectionBySlug(ctx, in.Slug)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %q", domain.ErrSlugExists, in.Slug)
		}

		if in.ParentID != nil {
			parent, err := repo.GetCollection(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("%w: parent collection %d", domain.ErrNotFound, *in.ParentID)
			}
			// The new row has no id yet, so this only trips on corrupt ancestry.
			cycle, err := hasCycleWithParent(ctx, repo, 0, *in.ParentID)
			if err != nil {
				return err
			}
			if cycle {
				return fmt.Errorf("%w: parent collection %d", domain.ErrCycleDetected, *in.ParentID)
			}
		}

		return repo.CreateCollection(ctx, collection)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created collection",
		zap.Int64("id", collection.ID),
		zap.String("slug", collection.Slug),
		zap.Int64p("parent_id", collection.ParentID))
	return collection, nil
}

func (s *CollectionService) GetCollection(ctx context.Context, id int64) (*domain.CollectionDetail, error) {
	var detail *domain.CollectionDetail
	err := s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		c, err := repo.GetCollection(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
		}

		path, err := ancestry(ctx, repo, c)
		if err != nil {
			return err
		}
		names := make([]string, len(path))
		for i, p := range path {
			names[i] = p.Name
		}

		total, err := repo.CountItemLinks(ctx, c.ID)
		if err != nil {
			return err
		}

		detail = &domain.CollectionDetail{
			Collection:     *c,
			IsRootNode:     c.IsRoot(),
			Depth:          len(path) - 1,
			BreadcrumbPath: strings.Join(names, " > "),
			TotalItemCount: total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *CollectionService) UpdateCollection(ctx context.Context, id int64, update domain.CollectionUpdate, changer *domain.User) (collection *domain.Collection, err error) {
	defer func() { s.record("update", err) }()

	if err := update.Normalize(); err != nil {
		return nil, err
	}

	err = s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		c, err := repo.GetCollection(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
		}

		if update.Slug != nil && *update.Slug != c.Slug {
			existing, err := repo.GetCollectionBySlug(ctx, *update.Slug)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != id {
				return fmt.Errorf("%w: %q", domain.ErrSlugExists, *update.Slug)
			}
			c.Slug = *update.Slug
		}

		// Moving to the root level is always legal.
		if update.ParentSet {
			if update.ParentID != nil && !sameID(update.ParentID, c.ParentID) {
				if err := validateNewParent(ctx, repo, id, *update.ParentID); err != nil {
					return err
				}
			}
			c.ParentID = update.ParentID
		}

		if update.Name != nil {
			c.Name = *update.Name
		}
		if update.Description != nil {
			if *update.Description == "" {
				c.Description = nil
			} else {
				c.Description = update.Description
			}
		}
		if update.IsOfficial != nil {
			c.IsOfficial = *update.IsOfficial
		}
		if changer.UserID() != nil {
			c.ChangedByID = changer.UserID()
		}
		c.UpdatedAt = s.now()

		if err := repo.UpdateCollection(ctx, c); err != nil {
			return err
		}
		collection = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("updated collection", zap.Int64("id", collection.ID), zap.String("slug", collection.Slug))
	return collection, nil
}

func validateNewParent(ctx context.Context, repo ports.CollectionRepository, id, parentID int64) error {
	if parentID == id {
		return fmt.Errorf("%w: collection %d cannot be its own parent", domain.ErrCycleDetected, id)
	}
	parent, err := repo.GetCollection(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: parent collection %d", domain.ErrNotFound, parentID)
	}
	cycle, err := hasCycleWithParent(ctx, repo, id, parentID)
	if err != nil {
		return err
	}
	if cycle {
		return fmt.Errorf("%w: moving collection %d under %d", domain.ErrCycleDetected, id, parentID)
	}
	return nil
}

// DeleteCollection removes the collection and promotes its direct children to its
// own parent. It reports false when the collection does not exist.
func (s *CollectionService) DeleteCollection(ctx context.Context, id int64) (deleted bool, err error) {
	defer func() { s.record("delete", err) }()

	var moved int64
	err = s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		c, err := repo.GetCollection(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}

		moved, err = repo.ReparentChildren(ctx, id, c.ParentID)
		if err != nil {
			return err
		}
		if err := repo.DeleteCollection(ctx, id); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.Info("deleted collection", zap.Int64("id", id), zap.Int64("reparented_children", moved))
	}
	return deleted, nil
}

func (s *CollectionService) ListCollections(ctx context.Context, page, limit int, search string) ([]domain.Collection, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	filters := map[string]interface{}{}
	if search != "" {
		filters["search"] = search
	}

	collections, err := s.repo.ListCollections(ctx, limit, offset, filters)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountCollections(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	return collections, total, nil
}

// hasCycleWithParent walks the parent chain upward from candidateParentID. Reaching
// selfID, or revisiting any id, counts as a cycle.
func hasCycleWithParent(ctx context.Context, repo ports.CollectionRepository, selfID, candidateParentID int64) (bool, error) {
	visited := make(map[int64]struct{})
	current := &candidateParentID
	for current != nil {
		id := *current
		if id == selfID {
			return true, nil
		}
		if _, seen := visited[id]; seen {
			return true, nil
		}
		visited[id] = struct{}{}

		parentID, found, err := repo.GetParentID(ctx, id)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		current = parentID
	}
	return false, nil
}

// ancestry returns the path from the root down to c. A cycle in stored data ends the walk.
func ancestry(ctx context.Context, repo ports.CollectionRepository, c *domain.Collection) ([]domain.Collection, error) {
	path := []domain.Collection{*c}
	visited := map[int64]struct{}{c.ID: {}}
	parentID := c.ParentID
	for parentID != nil {
		if _, seen := visited[*parentID]; seen {
			break
		}
		visited[*parentID] = struct{}{}

		parent, err := repo.GetCollection(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		path = append(path, *parent)
		parentID = parent.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
