// Package sqlite provides the default durable document and index store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database implements two ports:
//
//   - DocumentStore: uploaded documents and their extracted text
//   - IndexStore: one vector index record per document
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <data dir>/docchat.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode and an
// index record is replaced inside a single transaction, so a reader sees
// either the old record or the new one.
package sqlite
