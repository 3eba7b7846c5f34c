//go:build linux

package sysmem

import "golang.org/x/sys/unix"

// systemMemory reads sysinfo. Free plus buffer RAM approximates what a new
// allocation can use.
func systemMemory() (total, available uint64, ok bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0, false
	}
	unit := uint64(info.Unit)
	return info.Totalram * unit, (info.Freeram + info.Bufferram) * unit, true
}
