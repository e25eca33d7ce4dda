package domain

// ExportedCollection is the portable form of one collection. Parents are referenced
// by slug so a dump can be loaded into a database with different ids.
type ExportedCollection struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	ParentSlug  *string   `json:"parent_slug,omitempty"`
	IsOfficial  bool      `json:"is_official"`
	Items       []ItemRef `json:"items,omitempty"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Items    int      `json:"items"`
	Failures []string `json:"failures,omitempty"`
}
