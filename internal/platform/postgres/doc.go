// Package postgres provides PostgreSQL implementations of the store
// interfaces. Every adapter accepts a store.DBTX so it can run against the
// shared pool or inside a transaction, and maps driver errors to the
// store package's error taxonomy before they leave this boundary.
//
// List- and map-valued entity fields (grade issues, prompt target skills,
// recurring error patterns) are serialized as JSON text columns here and
// only here; the rest of the codebase works with the typed domain structs.
package postgres
