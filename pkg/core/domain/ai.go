package domain

import "strings"

// SQLRequest asks for a SQL query answering Question against one schema of a database.
type SQLRequest struct {
	DatabaseID int64  `json:"database_id"`
	Schema     string `json:"schema"`
	Question   string `json:"question"`
}

func (r *SQLRequest) Validate() error {
	if r.DatabaseID < 1 {
		return NewValidationError("database_id", "database_id must be a positive integer")
	}
	if l := len(r.Schema); l < 1 || l > 256 {
		return NewValidationError("schema", "schema must be between 1 and 256 characters")
	}
	if l := len(strings.TrimSpace(r.Question)); l < 1 || len(r.Question) > 2000 {
		return NewValidationError("question", "question must be between 1 and 2000 characters")
	}
	return nil
}

// Column describes one column of an inspected table.
type Column struct {
	Name string
	Type string
}
