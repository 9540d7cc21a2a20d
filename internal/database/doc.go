// Package database manages the PostgreSQL connection pool for the
// optional fill journal.
package database
