//go:build linux

// File: internal/concurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// sched_setaffinity based pinning.

package concurrency

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// processMask is the affinity inherited at startup, restored on unpin.
var processMask unix.CPUSet

func init() {
	if err := unix.SchedGetaffinity(0, &processMask); err != nil {
		processMask.Zero()
		for i := 0; i < NumCPUs(); i++ {
			processMask.Set(i)
		}
	}
}

func platformPinCurrentThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrapf(err, "concurrency: pin tid %d to cpu %d", unix.Gettid(), cpu)
	}
	return nil
}

func platformUnpinCurrentThread() error {
	mask := processMask
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return errors.Wrap(err, "concurrency: restore affinity")
	}
	return nil
}

func platformCurrentAffinity() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, errors.Wrap(err, "concurrency: get affinity")
	}
	out := make([]int, 0, set.Count())
	for i := 0; i < len(set)*64; i++ {
		if set.IsSet(i) {
			out = append(out, i)
		}
	}
	return out, nil
}
