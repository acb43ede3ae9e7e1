// Package repository implements database access for the finance service.
// All queries are tenant-scoped: anything reading or writing domain rows
// filters on organization_id.
package repository

import "database/sql"

// queryable is satisfied by both *sql.DB and *sql.Tx, so repository
// methods can run standalone or join the caller's transaction.
type queryable interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func on(db *sql.DB, tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return db
}
