// Package postgres contains the PostgreSQL implementations of the store
// interfaces. All SQL lives here; the rest of the application only sees
// the interfaces defined in internal/store.
package postgres
