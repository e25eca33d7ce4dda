package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

const sqlSystemPrompt = `You are a senior data analyst and SQL expert.
Return ONLY a valid SQL query for the specified SQL dialect. No prose, no markdown, no explanations.

CRITICAL CONSTRAINTS:
- Use ONLY the provided tables/columns (case sensitive).
- Generate READ-ONLY SELECT queries only (no DDL/DML).
- If the question is ambiguous, choose a reasonable interpretation.
- Always include LIMIT 500 to prevent large result sets.
- Use proper SQL syntax for the specified dialect.
- Join tables when needed to answer the question fully.`

const sqlUserTemplate = `Target SQL dialect: %s
Database: %s
Schema: %s

Available tables and columns:
%s

User question: %s

Return only the SQL query:`

// NonSelectPlaceholder replaces generated statements that are not SELECTs.
const NonSelectPlaceholder = "-- Generated SQL was not a SELECT query\nSELECT 'Please ask for data retrieval queries only' AS message;"

const truncationNotice = "... (more tables available but truncated for context limit)"

var bannedSQLPrefixes = []string{"DROP ", "TRUNCATE ", "DELETE ", "UPDATE ", "ALTER ", "INSERT ", "CREATE ", "GRANT ", "REVOKE "}

type AIConfig struct {
	MaxTables          int
	MaxColumnsPerTable int
	ContextMaxChars    int
}

type AIService struct {
	catalog   ports.ItemCatalog
	connector ports.SchemaConnector
	provider  ports.LLMProvider
	cfg       AIConfig
	logger    *zap.Logger
}

func NewAIService(catalog ports.ItemCatalog, connector ports.SchemaConnector, provider ports.LLMProvider, cfg AIConfig, logger *zap.Logger) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTables <= 0 {
		cfg.MaxTables = 8
	}
	if cfg.MaxColumnsPerTable <= 0 {
		cfg.MaxColumnsPerTable = 25
	}
	if cfg.ContextMaxChars <= 0 {
		cfg.ContextMaxChars = 15000
	}
	return &AIService{
		catalog:   catalog,
		connector: connector,
		provider:  provider,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *AIService) GenerateSQL(ctx context.Context, req domain.SQLRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	database, err := s.catalog.GetDatabase(ctx, req.DatabaseID)
	if err != nil {
		return "", err
	}
	if database == nil {
		return "", fmt.Errorf("%w: %d", domain.ErrDatabaseNotFound, req.DatabaseID)
	}

	inspector, err := s.connector.Connect(ctx, database)
	if err != nil {
		s.logger.Error("failed to connect to database", zap.Int64("database_id", database.ID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrDatabaseUnavailable, err)
	}
	defer inspector.Close()

	lines := s.schemaContext(ctx, inspector, req.Schema)

	if s.provider == nil {
		return "", fmt.Errorf("%w: no llm provider configured", domain.ErrLLMConfig)
	}
	schemaText := "(no tables found)"
	if len(lines) > 0 {
		schemaText = strings.Join(lines, "\n")
	}
	question := strings.TrimSpace(req.Question)
	userPrompt := fmt.Sprintf(sqlUserTemplate, database.Dialect(), database.DatabaseName, req.Schema, schemaText, question)

	s.logger.Info("generating sql", zap.Int64("database_id", database.ID), zap.String("question", truncate(question, 100)))
	raw, err := s.provider.Complete(ctx, sqlSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	sql, err := SanitizeSQL(raw)
	if err != nil {
		s.logger.Warn("blocked generated sql", zap.String("sql", truncate(raw, 100)))
		return "", err
	}
	return sql, nil
}

// schemaContext renders one "- table(col type, ...)" line per table. Inspection errors
// degrade the context instead of failing the request.
func (s *AIService) schemaContext(ctx context.Context, inspector ports.SchemaInspector, schema string) []string {
	tables, err := inspector.TableNames(ctx, schema)
	if err != nil {
		s.logger.Warn("failed to list tables", zap.String("schema", schema), zap.Error(err))
		return nil
	}
	sort.Strings(tables)
	if len(tables) > s.cfg.MaxTables {
		tables = tables[:s.cfg.MaxTables]
	}

	var lines []string
	for _, table := range tables {
		columns, err := inspector.Columns(ctx, schema, table)
		if err != nil {
			s.logger.Warn("failed to list columns", zap.String("table", table), zap.Error(err))
			lines = append(lines, "- "+table)
			continue
		}
		if len(columns) > s.cfg.MaxColumnsPerTable {
			columns = columns[:s.cfg.MaxColumnsPerTable]
		}
		parts := make([]string, 0, len(columns))
		for _, c := range columns {
			parts = append(parts, c.Name+" "+simplifyType(c.Type))
		}
		if len(parts) > 0 {
			lines = append(lines, fmt.Sprintf("- %s(%s)", table, strings.Join(parts, ", ")))
		}
	}

	text := strings.Join(lines, "\n")
	if len(text) <= s.cfg.ContextMaxChars {
		return lines
	}
	text = text[:s.cfg.ContextMaxChars]
	if i := strings.LastIndex(text, "\n"); i > 0 {
		text = text[:i]
	}
	return append(strings.Split(text, "\n"), truncationNotice)
}

func simplifyType(t string) string {
	t = strings.ToLower(t)
	switch {
	case t == "":
		return "unknown"
	case strings.Contains(t, "char"), strings.Contains(t, "text"):
		return "text"
	case strings.Contains(t, "int"), strings.Contains(t, "number"), strings.Contains(t, "numeric"):
		return "number"
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		return "timestamp"
	case strings.Contains(t, "date"):
		return "date"
	case strings.Contains(t, "bool"):
		return "boolean"
	}
	return t
}

// SanitizeSQL strips markdown fences and rejects write statements. Any other
// statement that is not a SELECT is swapped for NonSelectPlaceholder.
func SanitizeSQL(raw string) (string, error) {
	sql := strings.TrimSpace(raw)
	if strings.HasPrefix(sql, "```") {
		lines := strings.Split(sql, "\n")
		if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[1 : len(lines)-1]
		} else {
			lines = lines[1:]
		}
		sql = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	upper := strings.ToUpper(sql)
	for _, prefix := range bannedSQLPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return "", fmt.Errorf("%w: only SELECT queries are allowed, blocked %s", domain.ErrSQLSecurity, strings.TrimSpace(prefix))
		}
	}
	if !strings.HasPrefix(upper, "SELECT") {
		return NonSelectPlaceholder, nil
	}
	return sql, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ ports.AIService = (*AIService)(nil)
