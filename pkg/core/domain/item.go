package domain

import (
	"fmt"
	"time"
)

// ItemType identifies which external catalog an item link points into.
type ItemType string

const (
	ItemTypeDashboard ItemType = "dashboard"
	ItemTypeChart     ItemType = "chart"
	ItemTypeDataset   ItemType = "dataset"
)

// ItemTypes lists every item type in bucket order.
var ItemTypes = []ItemType{ItemTypeDashboard, ItemTypeChart, ItemTypeDataset}

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeDashboard, ItemTypeChart, ItemTypeDataset:
		return true
	}
	return false
}

func ParseItemType(s string) (ItemType, error) {
	t := ItemType(s)
	if !t.Valid() {
		return "", NewValidationError("type", fmt.Sprintf("invalid item type %q, must be one of dashboard, chart, dataset", s))
	}
	return t, nil
}

// ItemRef references one catalog item by type and id.
type ItemRef struct {
	Type ItemType `json:"type"`
	ID   int64    `json:"id"`
}

func (r ItemRef) Validate() error {
	if !r.Type.Valid() {
		return NewValidationError("type", fmt.Sprintf("invalid item type %q", r.Type))
	}
	if r.ID < 1 {
		return NewValidationError("id", "item id must be a positive integer")
	}
	return nil
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s %d", r.Type, r.ID)
}

// ItemLink is a membership row connecting a collection to one catalog item.
type ItemLink struct {
	ID           int64
	CollectionID int64
	ItemType     ItemType
	ItemID       int64
	CreatedByID  *int64
	CreatedAt    time.Time
}

// ItemError records why a single item of a batch call failed.
type ItemError struct {
	Type    ItemType `json:"type"`
	ID      int64    `json:"id"`
	Message string   `json:"message"`
}

// BatchResult is the partial-success outcome of a batch add or remove.
type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Errors    []ItemError `json:"errors"`
}

// CollectionItems groups a collection's items by type. TotalCount is the number of
// entries returned across the buckets, not the number of links stored.
type CollectionItems struct {
	Dashboards []DashboardItem `json:"dashboards"`
	Charts     []ChartItem     `json:"charts"`
	Datasets   []DatasetItem   `json:"datasets"`
	TotalCount int             `json:"total_count"`
}

type DashboardItem struct {
	ID             int64     `json:"id"`
	DashboardTitle string    `json:"dashboard_title"`
	Slug           *string   `json:"slug"`
	URL            string    `json:"url"`
	CreatedOn      time.Time `json:"created_on"`
}

type ChartItem struct {
	ID        int64     `json:"id"`
	SliceName string    `json:"slice_name"`
	VizType   string    `json:"viz_type"`
	URL       string    `json:"url"`
	CreatedOn time.Time `json:"created_on"`
}

type DatasetItem struct {
	ID           int64     `json:"id"`
	TableName    string    `json:"table_name"`
	Schema       *string   `json:"schema"`
	DatabaseName *string   `json:"database_name"`
	CreatedOn    time.Time `json:"created_on"`
}
