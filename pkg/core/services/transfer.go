package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

// ExportTree dumps every collection with its item references.
func (s *CollectionService) ExportTree(ctx context.Context) ([]domain.ExportedCollection, error) {
	var out []domain.ExportedCollection
	err := s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		collections, err := repo.Dump(ctx)
		if err != nil {
			return err
		}
		slugs := make(map[int64]string, len(collections))
		for _, c := range collections {
			slugs[c.ID] = c.Slug
		}

		out = make([]domain.ExportedCollection, 0, len(collections))
		for _, c := range collections {
			e := domain.ExportedCollection{
				Name:        c.Name,
				Slug:        c.Slug,
				Description: c.Description,
				IsOfficial:  c.IsOfficial,
			}
			if c.ParentID != nil {
				if slug, ok := slugs[*c.ParentID]; ok {
					e.ParentSlug = &slug
				}
			}
			for _, t := range domain.ItemTypes {
				links, err := repo.ListItemLinks(ctx, c.ID, t, 0, 0)
				if err != nil {
					return err
				}
				for _, l := range links {
					e.Items = append(e.Items, domain.ItemRef{Type: l.ItemType, ID: l.ItemID})
				}
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// ImportTree creates the collections whose slugs do not exist yet, resolving parents
// by slug. Existing slugs are kept as they are. Entries whose parent never resolves
// are reported as failures.
func (s *CollectionService) ImportTree(ctx context.Context, entries []domain.ExportedCollection, user *domain.User) (*domain.ImportResult, error) {
	result := &domain.ImportResult{}
	pending := entries
	for len(pending) > 0 {
		var next []domain.ExportedCollection
		for _, e := range pending {
			var parentID *int64
			if e.ParentSlug != nil {
				parent, err := s.repo.GetCollectionBySlug(ctx, *e.ParentSlug)
				if err != nil {
					return result, err
				}
				if parent == nil {
					next = append(next, e)
					continue
				}
				parentID = &parent.ID
			}

			existing, err := s.repo.GetCollectionBySlug(ctx, e.Slug)
			if err != nil {
				return result, err
			}
			if existing != nil {
				result.Skipped++
				continue
			}

			c, err := s.CreateCollection(ctx, domain.CollectionInput{
				Name:        e.Name,
				Slug:        e.Slug,
				Description: e.Description,
				ParentID:    parentID,
				IsOfficial:  e.IsOfficial,
			}, user)
			if err != nil {
				result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", e.Slug, err))
				continue
			}
			result.Created++

			for _, ref := range e.Items {
				err := s.AddItem(ctx, c.ID, ref, user)
				switch {
				case err == nil:
					result.Items++
				case errors.Is(err, domain.ErrItemAlreadyExists):
				default:
					result.Failures = append(result.Failures, fmt.Sprintf("%s: %s: %v", e.Slug, ref, err))
				}
			}
		}

		if len(next) == len(pending) {
			for _, e := range next {
				result.Failures = append(result.Failures, fmt.Sprintf("%s: parent %q not found", e.Slug, *e.ParentSlug))
			}
			break
		}
		pending = next
	}

	s.logger.Info("imported collections",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("items", result.Items),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}
