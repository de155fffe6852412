// Package pgsink mirrors resolved tracks into Postgres for consumers that
// read the catalog from a shared database.
package pgsink
