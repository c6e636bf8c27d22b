// Package engine executes validated JCR-SQL2 queries against the store.
//
// ARCHITECTURE:
//
// Execution Flow:
// 1. Per selector, the WHERE conjuncts that touch only that selector are
//    pushed down (querysql.Pushdown) and compiled to SQL selecting candidate
//    node ids in (seq, id) order
// 2. Candidate nodes are loaded with their properties in one batch read
// 3. Joins are evaluated left-deep as nested loops; equi-joins probe a
//    value index built over the right side
// 4. The full WHERE constraint is evaluated on every joined tuple
// 5. ORDER BY is applied with a stable sort, then columns are projected
//
// The engine only reads committed store state. A session's unsaved
// changes are never visible to queries.
//
// MULTI-VALUED PROPERTIES:
//
//   - Projection: a multi-valued property is one column holding every
//     value, on one row. A single assigned value is still a one-element
//     list; there is no special case for N=1.
//   - Equi-join: satisfied when any value on one side equals any value on
//     the other; one output tuple per matching (left, right) pair.
//   - Comparison: satisfied when any value satisfies it.
//
// CRITICAL PATTERNS:
//
// Creation Order:
// Nodes carry the monotonic seq stamped by the session that created them.
// NEVER use wall-clock timestamps for ordering.
//
// Deterministic Results:
// Candidates arrive in ORDER BY seq, id order and every later stage is
// order preserving, so the same query over the same content always yields
// the same rows in the same order.
package engine
