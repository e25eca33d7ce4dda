package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

type CollectionHandler struct {
	service ports.CollectionService
	logger  *zap.Logger
}

func NewCollectionHandler(service ports.CollectionService, logger *zap.Logger) *CollectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionHandler{service: service, logger: logger}
}

type collectionRequest struct {
	Name        *string         `json:"name"`
	Slug        *string         `json:"slug"`
	Description *string         `json:"description"`
	IsOfficial  *bool           `json:"is_official"`
	ParentID    json.RawMessage `json:"parent_id"`
}

// parent reports whether parent_id was present and its value. An explicit null is present with a nil id.
func (req *collectionRequest) parent() (bool, *int64, error) {
	if req.ParentID == nil {
		return false, nil, nil
	}
	var id *int64
	if err := json.Unmarshal(req.ParentID, &id); err != nil {
		return false, nil, domain.NewValidationError("parent_id", "must be an integer or null")
	}
	return true, id, nil
}

type itemsRequest struct {
	Items []domain.ItemRef `json:"items"`
}

func (req *itemsRequest) validate() error {
	if len(req.Items) == 0 {
		return domain.NewValidationError("items", "at least one item is required")
	}
	for _, item := range req.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type permissionsRequest struct {
	Permissions []domain.CollectionPermission `json:"permissions"`
}

// GetTree answers GET /api/v1/collection/tree. max_depth is capped at
// domain.MaxTreeDepth; the depth applied is echoed back as max_depth.
func (h *CollectionHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	var rootID *int64
	if r.URL.Query().Get("root_id") != "" {
		id, err := queryInt(r, "root_id", 0)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		v := int64(id)
		rootID = &v
	}
	var maxDepth *int
	if r.URL.Query().Get("max_depth") != "" {
		d, err := queryInt(r, "max_depth", 0)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		maxDepth = &d
	}

	tree, err := h.service.GetTree(r.Context(), rootID, maxDepth, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeResult(w, http.StatusOK, map[string]any{
		"collections": tree,
		"total_count": len(tree),
		"max_depth":   domain.TreeDepth(maxDepth),
	})
}

func (h *CollectionHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	collections, total, err := h.service.ListCollections(r.Context(), page, limit, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if collections == nil {
		collections = []domain.Collection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": collections,
		"count":  total,
		"page":   page,
		"limit":  limit,
	})
}

func (h *CollectionHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.service.CanView(r.Context(), UserFromContext(r.Context()), id) {
		writeError(w, h.logger, domain.ErrPermissionDenied)
		return
	}

	detail, err := h.service.GetCollection(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeResult(w, http.StatusOK, detail)
}

func (h *CollectionHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.service.CanView(r.Context(), UserFromContext(r.Context()), id) {
		writeError(w, h.logger, domain.ErrPermissionDenied)
		return
	}

	var itemType *domain.ItemType
	raw := r.URL.Query().Get("item_type")
	if raw == "" {
		raw = r.URL.Query().Get("type")
	}
	if raw != "" {
		t, err := domain.ParseItemType(raw)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		itemType = &t
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items, err := h.service.GetItems(r.Context(), id, itemType, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeResult(w, http.StatusOK, items)
}

func (h *CollectionHandler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	_, parentID, err := req.parent()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user := UserFromContext(r.Context())
	if !h.service.CanCreateCollection(r.Context(), user, parentID) {
		writeError(w, h.logger, fmt.Errorf("%w: cannot create collection here", domain.ErrPermissionDenied))
		return
	}

	in := domain.CollectionInput{Description: req.Description, ParentID: parentID}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Slug != nil {
		in.Slug = *req.Slug
	}
	if req.IsOfficial != nil {
		in.IsOfficial = *req.IsOfficial
	}

	collection, err := h.service.CreateCollection(r.Context(), in, user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeResult(w, http.StatusCreated, collection)
}

func (h *CollectionHandler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	parentSet, parentID, err := req.parent()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user := UserFromContext(r.Context())
	if !h.service.CanCurate(r.Context(), user, id) {
		writeError(w, h.logger, fmt.Errorf("%w: cannot modify collection %d", domain.ErrPermissionDenied, id))
		return
	}
	if parentSet && parentID != nil && !h.service.CanCurate(r.Context(), user, *parentID) {
		writeError(w, h.logger, fmt.Errorf("%w: cannot move into collection %d", domain.ErrPermissionDenied, *parentID))
		return
	}

	collection, err := h.service.UpdateCollection(r.Context(), id, domain.CollectionUpdate{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		IsOfficial:  req.IsOfficial,
		ParentSet:   parentSet,
		ParentID:    parentID,
	}, user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeResult(w, http.StatusOK, collection)
}

func (h *CollectionHandler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.service.CanCurate(r.Context(), UserFromContext(r.Context()), id) {
		writeError(w, h.logger, fmt.Errorf("%w: cannot delete collection %d", domain.ErrPermissionDenied, id))
		return
	}

	deleted, err := h.service.DeleteCollection(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !deleted {
		writeMessage(w, http.StatusNotFound, "Not found")
		return
	}
	writeMessage(w, http.StatusOK, "Collection deleted successfully")
}

func (h *CollectionHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	h.changeItems(w, r, "Added", func(id int64, refs []domain.ItemRef, user *domain.User) (*domain.BatchResult, error) {
		return h.service.AddItems(r.Context(), id, refs, user)
	})
}

func (h *CollectionHandler) RemoveItems(w http.ResponseWriter, r *http.Request) {
	h.changeItems(w, r, "Removed", func(id int64, refs []domain.ItemRef, _ *domain.User) (*domain.BatchResult, error) {
		return h.service.RemoveItems(r.Context(), id, refs)
	})
}

type batchFunc func(id int64, refs []domain.ItemRef, user *domain.User) (*domain.BatchResult, error)

func (h *CollectionHandler) changeItems(w http.ResponseWriter, r *http.Request, verb string, apply batchFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req itemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user := UserFromContext(r.Context())
	if !h.service.CanCurate(r.Context(), user, id) {
		writeError(w, h.logger, fmt.Errorf("%w: cannot manage items of collection %d", domain.ErrPermissionDenied, id))
		return
	}

	result, err := apply(id, req.Items, user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if result.Errors == nil {
		result.Errors = []domain.ItemError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": batchMessage(verb, result),
		"result":  result,
	})
}

func batchMessage(verb string, result *domain.BatchResult) string {
	preposition := "to"
	if verb == "Removed" {
		preposition = "from"
	}
	msg := fmt.Sprintf("%s %d items %s collection", verb, result.Succeeded, preposition)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf(". %d failed", len(result.Errors))
	}
	return msg
}

func (h *CollectionHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.service.CanManagePermissions(UserFromContext(r.Context())) {
		writeError(w, h.logger, fmt.Errorf("%w: managing permissions requires admin", domain.ErrPermissionDenied))
		return
	}

	perms, err := h.service.GetPermissions(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if perms == nil {
		perms = []domain.CollectionPermission{}
	}
	writeResult(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *CollectionHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req permissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	n, err := h.service.SetPermissions(r.Context(), id, req.Permissions, UserFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, fmt.Sprintf("Updated %d permissions", n))
}
