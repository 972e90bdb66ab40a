package sqlite

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/store"
)

// mapNotFound translates sql.ErrNoRows into the store sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConflict translates unique-constraint violations into the store
// sentinel. modernc.org/sqlite surfaces these as plain errors, so we match
// on the sqlite error text.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// joinFields space-joins a list for single-column storage.
func joinFields(fields []string) string {
	return strings.Join(fields, " ")
}

// splitFields splits a space-joined column back into a list.
// Returns nil for empty columns.
func splitFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// unix converts a time to unix seconds for INTEGER columns.
func unix(t time.Time) int64 {
	return t.UTC().Unix()
}

// fromUnix converts unix seconds back to UTC time.
func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

// nullUnix converts an optional time into a nullable column value.
func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: unix(*t), Valid: true}
}

// fromNullUnix converts a nullable column back into an optional time.
func fromNullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}
