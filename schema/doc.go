// Package schema defines the todo-list tables and the migration steps that
// create them.
package schema
