// Package api
// Author: momentics
//
// Message buffer arena accounting shared by pool implementations and
// observability probes.

package api

// BufferPoolStats aggregates message buffer arena allocation stats.
type BufferPoolStats struct {
	Regions    int   // fixed-capacity regions owned by the arena
	RegionSize int   // bytes per region
	TotalAlloc int64 // successful allocations since creation
	TotalFree  int64 // releases since creation
	InUse      int64 // regions currently borrowed
	Hugepages  bool  // backing memory came from hugepage mmap
}
