package jcr

import "sync/atomic"

// creationOrder stamps nodes with the position they were created in.
// Queries without ORDER BY return rows in this order. A reopened repository
// resumes after the highest position found in its store.
type creationOrder struct {
	last atomic.Int64
}

func resumeCreationOrder(last int64) *creationOrder {
	o := &creationOrder{}
	o.last.Store(last)
	return o
}

// stamp returns the next position. Safe for concurrent sessions.
func (o *creationOrder) stamp() int64 {
	return o.last.Add(1)
}
