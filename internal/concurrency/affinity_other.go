//go:build !linux

// File: internal/concurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

func platformPinCurrentThread(cpu int) error { return nil }

func platformUnpinCurrentThread() error { return nil }

func platformCurrentAffinity() ([]int, error) {
	out := make([]int, NumCPUs())
	for i := range out {
		out[i] = i
	}
	return out, nil
}
