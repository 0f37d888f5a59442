// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Host facts exposed as debug probes.

package control

import (
	"runtime"
)

// RegisterPlatformProbes adds host-level probes to dp.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS + "/" + runtime.GOARCH
	})
}
