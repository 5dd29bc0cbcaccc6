// Package gamedb reads the Motor Town game data extracted into sqlite. The
// database is always opened read-only.
package gamedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/iamvkosarev/amc-discord/internal/model"
)

const (
	MaxRows             = 100
	defaultQueryTimeout = 5 * time.Second
)

var ErrReadOnlyViolation = errors.New("read-only violation")

// ReadOnlyViolationError carries the reason shown back to the model.
type ReadOnlyViolationError struct {
	Reason string
}

func (e *ReadOnlyViolationError) Error() string {
	return e.Reason
}

func (e *ReadOnlyViolationError) Is(target error) bool {
	return target == ErrReadOnlyViolation
}

var blockedKeywords = []string{"ATTACH", "PRAGMA", "LOAD_EXTENSION", "DETACH"}

type DB struct {
	db           *sql.DB
	sq           sq.StatementBuilderType
	queryTimeout time.Duration
}

// Open connects to the game database at path in read-only mode.
func Open(path string, queryTimeout time.Duration) (*DB, error) {
	timeout := queryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, timeout.Milliseconds())
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open game db %s: %w", path, err)
	}
	if err = conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open game db %s: %w", path, err)
	}
	return New(conn, timeout), nil
}

func New(conn *sql.DB, queryTimeout time.Duration) *DB {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &DB{
		db:           conn,
		sq:           sq.StatementBuilder,
		queryTimeout: queryTimeout,
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

// ValidateReadOnlySQL rejects statements containing a blocked keyword
// anywhere, then anything that is not a SELECT.
func ValidateReadOnlySQL(statement string) error {
	upper := strings.ToUpper(strings.TrimSpace(statement))
	for _, keyword := range blockedKeywords {
		if strings.Contains(upper, keyword) {
			return &ReadOnlyViolationError{Reason: "Query contains blocked keyword: " + keyword}
		}
	}
	if !strings.HasPrefix(upper, "SELECT") {
		return &ReadOnlyViolationError{Reason: "Only SELECT queries are allowed"}
	}
	return nil
}

// Query runs a model-authored SELECT. Every failure is reported inside the
// result so it can be handed back to the model as is.
func (d *DB) Query(ctx context.Context, statement string) model.QueryResult {
	if err := ValidateReadOnlySQL(statement); err != nil {
		return model.QueryResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, d.queryTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, strings.TrimSpace(statement))
	if err != nil {
		return model.QueryResult{Error: fmt.Sprintf("SQL error: %v", err)}
	}
	defer rows.Close()

	results, more, err := scanRows(rows, MaxRows)
	if err != nil {
		return model.QueryResult{Error: fmt.Sprintf("Query failed: %v", err)}
	}
	result := model.QueryResult{
		Results: results,
		Count:   len(results),
	}
	if more {
		result.Truncated = true
		result.Note = fmt.Sprintf("Results limited to %d rows", MaxRows)
	}
	return result
}

// SchemaDescription lists tables and views with their columns for tool
// descriptions.
func (d *DB) SchemaDescription(ctx context.Context) string {
	description, err := d.schemaDescription(ctx)
	if err != nil {
		log.Printf("[gamedb] schema introspection failed: %v", err)
		return "Schema introspection failed - using read-only database with vehicles, vehicle_parts, cargos, and views"
	}
	return description
}

func (d *DB) schemaDescription(ctx context.Context) (string, error) {
	query, args, err := d.sq.
		Select("name", "type").
		From("sqlite_master").
		Where(sq.Eq{"type": []string{"table", "view"}}).
		Where(sq.NotLike{"name": "sqlite_%"}).
		OrderBy("type DESC", "name").
		ToSql()
	if err != nil {
		return "", err
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	type object struct{ name, kind string }
	var objects []object
	for rows.Next() {
		var o object
		if err = rows.Scan(&o.name, &o.kind); err != nil {
			_ = rows.Close()
			return "", err
		}
		objects = append(objects, o)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("MotorTown Game Database Schema:\n")
	for _, o := range objects {
		columns, err := d.columns(ctx, o.name)
		if err != nil {
			return "", err
		}
		label := "TABLE"
		if o.kind == "view" {
			label = "VIEW"
		}
		fmt.Fprintf(&b, "\n%s: %s\n  Columns: %s", label, o.name, strings.Join(columns, ", "))
	}
	return b.String(), nil
}

func (d *DB) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []string
	for rows.Next() {
		var name, kind string
		if err = rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		columns = append(columns, fmt.Sprintf("%s (%s)", name, kind))
	}
	return columns, rows.Err()
}

// scanRows reads up to limit rows and reports whether more were available.
func scanRows(rows *sql.Rows, limit int) ([]map[string]any, bool, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}
	results := make([]map[string]any, 0)
	for rows.Next() {
		if limit > 0 && len(results) == limit {
			return results, true, nil
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err = rows.Scan(pointers...); err != nil {
			return nil, false, err
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if raw, ok := values[i].([]byte); ok {
				row[column] = string(raw)
				continue
			}
			row[column] = values[i]
		}
		results = append(results, row)
	}
	return results, false, rows.Err()
}
