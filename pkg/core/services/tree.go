package services

import (
	"context"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
)

// GetTree materializes the forest, or the subtree under rootID, into nested nodes.
// A nil maxDepth means unlimited, but traversal never goes past domain.MaxTreeDepth.
// When user is non-nil, nodes the user cannot view are dropped with their subtrees.
func (s *CollectionService) GetTree(ctx context.Context, rootID *int64, maxDepth *int, user *domain.User) ([]domain.TreeNode, error) {
	depthLimit := domain.TreeDepth(maxDepth)

	tree := []domain.TreeNode{}
	err := s.repo.InTx(ctx, func(repo ports.CollectionRepository) error {
		var roots []domain.Collection
		if rootID != nil {
			root, err := repo.GetCollection(ctx, *rootID)
			if err != nil {
				return err
			}
			if root == nil {
				return nil
			}
			roots = []domain.Collection{*root}
		} else {
			var err error
			if roots, err = repo.ListRootCollections(ctx); err != nil {
				return err
			}
		}

		b := &treeBuilder{
			repo:       repo,
			oracle:     s.oracle,
			user:       user,
			depthLimit: depthLimit,
			visited:    make(map[int64]struct{}),
		}
		for _, root := range roots {
			if !b.canView(ctx, root.ID) {
				continue
			}
			node, err := b.build(ctx, root, 0)
			if err != nil {
				return err
			}
			tree = append(tree, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

type treeBuilder struct {
	repo       ports.CollectionRepository
	oracle     ports.PermissionOracle
	user       *domain.User
	depthLimit int
	visited    map[int64]struct{}
}

func (b *treeBuilder) canView(ctx context.Context, id int64) bool {
	return b.user == nil || b.oracle.CanView(ctx, b.user, id)
}

func (b *treeBuilder) build(ctx context.Context, c domain.Collection, depth int) (domain.TreeNode, error) {
	b.visited[c.ID] = struct{}{}

	total, err := b.repo.CountItemLinks(ctx, c.ID)
	if err != nil {
		return domain.TreeNode{}, err
	}
	node := domain.TreeNode{
		ID:             c.ID,
		UUID:           c.UUID,
		Name:           c.Name,
		Slug:           c.Slug,
		Description:    c.Description,
		IsOfficial:     c.IsOfficial,
		ItemCount:      c.ItemCount,
		TotalItemCount: total,
		Depth:          depth,
		Children:       []domain.TreeNode{},
	}
	if depth >= b.depthLimit {
		return node, nil
	}

	children, err := b.repo.ListChildren(ctx, c.ID)
	if err != nil {
		return domain.TreeNode{}, err
	}
	for _, child := range children {
		if _, seen := b.visited[child.ID]; seen {
			continue
		}
		if !b.canView(ctx, child.ID) {
			continue
		}
		childNode, err := b.build(ctx, child, depth+1)
		if err != nil {
			return domain.TreeNode{}, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}
