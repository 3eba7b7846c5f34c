//go:build darwin

package sysmem

import "golang.org/x/sys/unix"

func systemMemory() (total, available uint64, ok bool) {
	total, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, 0, false
	}
	free, err := unix.SysctlUint32("vm.page_free_count")
	if err != nil {
		return total, 0, true
	}
	return total, uint64(free) * uint64(unix.Getpagesize()), true
}
