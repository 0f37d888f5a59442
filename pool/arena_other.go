// File: pool/arena_other.go
//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Heap-backed slab for platforms without hugepage mmap support.

package pool

func allocSlab(size int) (slab, mapping []byte) {
	return make([]byte, size), nil
}

func releaseSlab(mapping []byte) error {
	return nil
}
