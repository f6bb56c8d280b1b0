//go:build linux

package web

import "golang.org/x/sys/unix"

func snapshotHost() *HostSnapshot {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return nil
	}

	const loadScale = 1 << 16 // SI_LOAD_SHIFT fixed point
	return &HostSnapshot{
		UptimeSec: int64(si.Uptime),
		Load: [3]float64{
			float64(si.Loads[0]) / loadScale,
			float64(si.Loads[1]) / loadScale,
			float64(si.Loads[2]) / loadScale,
		},
	}
}
