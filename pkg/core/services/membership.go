package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

// AddItem links one catalog item to the collection and bumps its cached count in the
// same transaction.
func (s *CollectionService) AddItem(ctx context.Context, collectionID int64, ref domain.ItemRef, creator *domain.User) (err error) {
	defer func() { s.record("add_item", err) }()

	if err := ref.Validate(); err != nil {
		return err
	}
	err = s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		return s.addItem(ctx, repo, collectionID, ref, creator)
	})
	if err != nil {
		return err
	}
	s.logger.Info("added item", zap.Int64("collection_id", collectionID), zap.Stringer("item", ref))
	return nil
}

func (s *CollectionService) addItem(ctx context.Context, repo ports.CollectionRepository, collectionID int64, ref domain.ItemRef, creator *domain.User) error {
	c, err := repo.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, collectionID)
	}

	exists, err := repo.ItemLinkExists(ctx, collectionID, ref.Type, ref.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s in collection %d", domain.ErrItemAlreadyExists, ref, collectionID)
	}

	count, err := repo.CountItemLinks(ctx, collectionID)
	if err != nil {
		return err
	}
	if count >= domain.MaxItemsPerCollection {
		return fmt.Errorf("%w: collection %d already holds %d items", domain.ErrItemLimitExceeded, collectionID, count)
	}

	link := &domain.ItemLink{
		CollectionID: collectionID,
		ItemType:     ref.Type,
		ItemID:       ref.ID,
		CreatedByID:  creator.UserID(),
		CreatedAt:    s.now(),
	}
	if err := repo.AddItemLink(ctx, link); err != nil {
		return err
	}
	return repo.AdjustItemCount(ctx, collectionID, 1)
}

// RemoveItem unlinks one catalog item and decrements the cached count, floored at zero.
func (s *CollectionService) RemoveItem(ctx context.Context, collectionID int64, ref domain.ItemRef) (err error) {
	defer func() { s.record("remove_item", err) }()

	if err := ref.Validate(); err != nil {
		return err
	}
	err = s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		return removeItem(ctx, repo, collectionID, ref)
	})
	if err != nil {
		return err
	}
	s.logger.Info("removed item", zap.Int64("collection_id", collectionID), zap.Stringer("item", ref))
	return nil
}

func removeItem(ctx context.Context, repo ports.CollectionRepository, collectionID int64, ref domain.ItemRef) error {
	c, err := repo.GetCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, collectionID)
	}

	removed, err := repo.RemoveItemLink(ctx, collectionID, ref.Type, ref.ID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s in collection %d", domain.ErrItemNotFound, ref, collectionID)
	}
	return repo.AdjustItemCount(ctx, collectionID, -1)
}

// AddItems adds each item in its own transaction. A missing collection aborts the
// batch; any other failure is recorded against the item and the batch continues.
func (s *CollectionService) AddItems(ctx context.Context, collectionID int64, refs []domain.ItemRef, creator *domain.User) (*domain.BatchResult, error) {
	return s.batch(ctx, "add", collectionID, refs, func(ref domain.ItemRef) error {
		return s.AddItem(ctx, collectionID, ref, creator)
	})
}

// RemoveItems is the batch counterpart of RemoveItem.
func (s *CollectionService) RemoveItems(ctx context.Context, collectionID int64, refs []domain.ItemRef) (*domain.BatchResult, error) {
	return s.batch(ctx, "remove", collectionID, refs, func(ref domain.ItemRef) error {
		return s.RemoveItem(ctx, collectionID, ref)
	})
}

func (s *CollectionService) batch(ctx context.Context, verb string, collectionID int64, refs []domain.ItemRef, apply func(domain.ItemRef) error) (*domain.BatchResult, error) {
	c, err := s.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, collectionID)
	}

	result := &domain.BatchResult{Errors: []domain.ItemError{}}
	for _, ref := range refs {
		err := apply(ref)
		if err == nil {
			result.Succeeded++
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		result.Errors = append(result.Errors, domain.ItemError{Type: ref.Type, ID: ref.ID, Message: itemErrorMessage(err)})
		if !isDomainError(err) {
			s.logger.Error("batch item failed",
				zap.String("op", verb),
				zap.Int64("collection_id", collectionID),
				zap.Stringer("item", ref),
				zap.Error(err))
		}
	}
	return result, nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrItemAlreadyExists,
		domain.ErrItemNotFound,
		domain.ErrItemLimitExceeded,
		domain.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func itemErrorMessage(err error) string {
	if isDomainError(err) {
		return err.Error()
	}
	return "internal error"
}

// GetItems returns the collection's items bucketed by type. limit and offset apply to
// each bucket on its own; zero means unbounded. TotalCount counts the entries returned.
// Links whose catalog item no longer exists are skipped.
func (s *CollectionService) GetItems(ctx context.Context, collectionID int64, itemType *domain.ItemType, limit, offset int) (*domain.CollectionItems, error) {
	c, err := s.repo.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, collectionID)
	}

	items := &domain.CollectionItems{
		Dashboards: []domain.DashboardItem{},
		Charts:     []domain.ChartItem{},
		Datasets:   []domain.DatasetItem{},
	}
	for _, t := range domain.ItemTypes {
		if itemType != nil && *itemType != t {
			continue
		}
		links, err := s.repo.ListItemLinks(ctx, collectionID, t, limit, offset)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if err := s.appendItem(ctx, items, link); err != nil {
				return nil, err
			}
		}
	}
	items.TotalCount = len(items.Dashboards) + len(items.Charts) + len(items.Datasets)
	return items, nil
}

func (s *CollectionService) appendItem(ctx context.Context, items *domain.CollectionItems, link domain.ItemLink) error {
	switch link.ItemType {
	case domain.ItemTypeDashboard:
		d, err := s.catalog.GetDashboard(ctx, link.ItemID)
		if err != nil || d == nil {
			return err
		}
		items.Dashboards = append(items.Dashboards, domain.DashboardItem{
			ID:             d.ID,
			DashboardTitle: d.DashboardTitle,
			Slug:           d.Slug,
			URL:            d.URL(),
			CreatedOn:      link.CreatedAt,
		})
	case domain.ItemTypeChart:
		ch, err := s.catalog.GetChart(ctx, link.ItemID)
		if err != nil || ch == nil {
			return err
		}
		items.Charts = append(items.Charts, domain.ChartItem{
			ID:        ch.ID,
			SliceName: ch.SliceName,
			VizType:   ch.VizType,
			URL:       ch.URL(),
			CreatedOn: link.CreatedAt,
		})
	case domain.ItemTypeDataset:
		ds, err := s.catalog.GetDataset(ctx, link.ItemID)
		if err != nil || ds == nil {
			return err
		}
		items.Datasets = append(items.Datasets, domain.DatasetItem{
			ID:           ds.ID,
			TableName:    ds.TableName,
			Schema:       ds.Schema,
			DatabaseName: ds.DatabaseName,
			CreatedOn:    link.CreatedAt,
		})
	}
	return nil
}

// RecomputeItemCount resyncs the cached count of the collection and, while counts keep
// changing, of each ancestor on the way up. Ancestors only hold their own direct counts.
func (s *CollectionService) RecomputeItemCount(ctx context.Context, collectionID int64) error {
	return s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		visited := make(map[int64]struct{})
		current := &collectionID
		for current != nil {
			id := *current
			if _, seen := visited[id]; seen {
				return nil
			}
			visited[id] = struct{}{}

			c, err := repo.GetCollection(ctx, id)
			if err != nil {
				return err
			}
			if c == nil {
				if id == collectionID {
					return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
				}
				return nil
			}
			changed, err := s.resync(ctx, repo, c)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			current = c.ParentID
		}
		return nil
	})
}

// RecomputeAllItemCounts resyncs every collection and reports how many counts changed.
func (s *CollectionService) RecomputeAllItemCounts(ctx context.Context) (int, error) {
	changed := 0
	err := s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		collections, err := repo.Dump(ctx)
		if err != nil {
			return err
		}
		for i := range collections {
			ok, err := s.resync(ctx, repo, &collections[i])
			if err != nil {
				return err
			}
			if ok {
				changed++
			}
		}
		return nil
	})
	return changed, err
}

func (s *CollectionService) resync(ctx context.Context, repo ports.CollectionRepository, c *domain.Collection) (bool, error) {
	actual, err := repo.CountItemLinks(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if actual == c.ItemCount {
		return false, nil
	}
	if err := repo.SetItemCount(ctx, c.ID, actual); err != nil {
		return false, err
	}
	s.logger.Info("recomputed item count",
		zap.Int64("collection_id", c.ID),
		zap.Int("previous", c.ItemCount),
		zap.Int("actual", actual))
	c.ItemCount = actual
	return true, nil
}
