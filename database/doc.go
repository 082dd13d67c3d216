// Package database manages a single embedded SQLite handle built on Bun: a
// lazily opened, shared connection (ConnectionFactory), the engine that opens
// the file and drives versioned schema hooks (create, upgrade, downgrade), a
// step-based Migrator, SQL script loading, query hooks and logging.
package database
