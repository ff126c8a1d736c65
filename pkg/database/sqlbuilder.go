package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
)

// Excluded references the row proposed for insertion in an ON CONFLICT clause.
func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder() *InsertBuilder {
	return &InsertBuilder{
		sqlbuilder.PostgreSQL.NewInsertBuilder(),
	}
}

// OnConflict appends "ON CONFLICT (cols) DO UPDATE SET ..." with the given
// assignments. where, when non-empty, guards the update.
func (b *InsertBuilder) OnConflict(columns []string, assignments []string, where string) *InsertBuilder {
	clause := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(columns, ", "), strings.Join(assignments, ", "))
	if where != "" {
		clause += " WHERE " + where
	}
	b.SQL(clause)
	return b
}

func (b *InsertBuilder) OnConflictDoNothing() *InsertBuilder {
	b.SQL("ON CONFLICT DO NOTHING")
	return b
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

// StringsToAny widens ids for sqlbuilder.In.
func StringsToAny(values []string) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
