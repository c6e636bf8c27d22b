// Package store provides SQLite-backed persistence for repository content.
//
// The store keeps four kinds of record:
//   - Namespaces: prefix to URI bindings
//   - Node types: registered definitions as canonical JSON
//   - Nodes: the workspace tree (id, parent, name, path, primary type)
//   - Properties: one row per property plus one row per value, so a
//     multi-valued property keeps its order and an empty one stays present
//
// # Critical Patterns
//
// Atomic saves:
//   - A session save is a single ChangeSet applied in one transaction
//   - Readers never observe half of a save
//
// Logical ordering:
//   - Nodes carry a seq INTEGER assigned at creation, NEVER a timestamp
//   - Node queries MUST include: ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Removing a node cascades to its subtree and values
//
// Open(":memory:") gives an in-memory repository; the single pooled
// connection keeps the database alive until Close.
package store
