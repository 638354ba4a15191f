// Package store persists quarkdown-mcp history using SQLite.
//
// Two record types are kept:
//
//   - ToolCall: one row per MCP tool invocation (tool, transport, trimmed
//     arguments, outcome, duration)
//   - BatchRun: one summary row per convert_batch execution
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo) in WAL mode and
// creates its schema on open. Pass MemoryPath for a throwaway database.
//
// List methods return newest first, default to 100 rows and cap at 1000.
//
// Use NewMockStore() in unit tests that only need the Store interface.
package store
