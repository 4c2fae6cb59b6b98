// Package repository implements the database access layer for ReportHub.
// Each repository wraps one table and receives its connection pool at construction.
package repository

import (
	"errors"
	"strings"

	"github.com/avissapr/reporthub/internal/models"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrAmbiguousName is returned when a case-insensitive name lookup matches
	// more than one active account.
	ErrAmbiguousName = errors.New("name matches more than one account")

	// ErrStaleDirective is returned when a directive's version no longer matches
	// the version the caller last read.
	ErrStaleDirective = errors.New("directive was modified concurrently")

	// ErrInvalidTransition is returned for any directive status change other
	// than active -> completed.
	ErrInvalidTransition = errors.New("invalid directive status transition")
)

// orderClause translates a SortOrder into an ORDER BY clause restricted to the
// given columns. Unknown columns fall back to created_date descending, so the
// result never contains caller-controlled SQL.
func orderClause(order models.SortOrder, allowed ...string) string {
	col := strings.TrimPrefix(string(order), "-")
	dir := "ASC"
	if strings.HasPrefix(string(order), "-") {
		dir = "DESC"
	}

	for _, a := range allowed {
		if col == a {
			return a + " " + dir + ", id " + dir
		}
	}
	return "created_date DESC, id DESC"
}
