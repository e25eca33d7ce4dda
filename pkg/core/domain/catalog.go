package domain

import (
	"fmt"
	"strings"
	"time"
)

// Catalog entries are owned by the host application; collections only reference them.

type Dashboard struct {
	ID             int64
	DashboardTitle string
	Slug           *string
	CreatedAt      time.Time
}

func (d *Dashboard) URL() string {
	if d.Slug != nil && *d.Slug != "" {
		return fmt.Sprintf("/superset/dashboard/%s/", *d.Slug)
	}
	return fmt.Sprintf("/superset/dashboard/%d/", d.ID)
}

type Chart struct {
	ID        int64
	SliceName string
	VizType   string
	CreatedAt time.Time
}

func (c *Chart) URL() string {
	return fmt.Sprintf("/explore/?slice_id=%d", c.ID)
}

type Dataset struct {
	ID           int64
	TableName    string
	Schema       *string
	DatabaseID   *int64
	DatabaseName *string
	CreatedAt    time.Time
}

// Database is a registered analytics database that the AI SQL endpoint can inspect.
type Database struct {
	ID           int64
	DatabaseName string
	Backend      string
	DSN          string
}

// Dialect is the SQL dialect name handed to the language model.
func (d *Database) Dialect() string {
	switch strings.ToLower(d.Backend) {
	case "", "libsql":
		return "sqlite"
	default:
		return strings.ToLower(d.Backend)
	}
}
