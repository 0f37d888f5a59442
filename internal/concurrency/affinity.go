// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform CPU affinity entry points.

package concurrency

import (
	"fmt"
	"runtime"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// the thread to cpu. A negative cpu only locks the thread. The lock is held
// even when binding fails; call UnpinCurrentThread to release it.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	if cpu < 0 {
		return nil
	}
	if cpu >= NumCPUs() {
		return fmt.Errorf("concurrency: cpu %d out of range [0,%d)", cpu, NumCPUs())
	}
	return platformPinCurrentThread(cpu)
}

// UnpinCurrentThread restores the thread's original CPU mask and unlocks it
// from the calling goroutine.
func UnpinCurrentThread() error {
	err := platformUnpinCurrentThread()
	runtime.UnlockOSThread()
	return err
}

// CurrentAffinity reports the CPUs the calling thread may run on.
func CurrentAffinity() ([]int, error) {
	return platformCurrentAffinity()
}
