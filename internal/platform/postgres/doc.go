// Package postgres contains PostgreSQL implementations of the store
// interfaces defined in internal/store. All implementations accept a
// store.DBTX so they can run against either the connection pool or a
// transaction, and map driver errors through MapError.
package postgres
