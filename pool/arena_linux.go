// File: pool/arena_linux.go
//go:build linux

//
// Package pool: Linux slab allocation for the message buffer arena.
//
// The slab is mapped with MAP_HUGETLB on 2 MiB pages so the NIC sees few,
// large registrations. Falls back to the Go heap if hugepages are unavailable.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "golang.org/x/sys/unix"

const hugePageSize = 2 << 20

// allocSlab returns size usable bytes and, when mmap succeeded, the full
// mapping that must later be passed to releaseSlab.
func allocSlab(size int) (slab, mapping []byte) {
	length := ((size + hugePageSize - 1) / hugePageSize) * hugePageSize
	data, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE|unix.MAP_HUGETLB)
	if err != nil {
		return make([]byte, size), nil
	}
	return data[:size:size], data
}

// releaseSlab returns hugepage memory to the OS.
func releaseSlab(mapping []byte) error {
	if mapping == nil {
		return nil
	}
	return unix.Munmap(mapping)
}
