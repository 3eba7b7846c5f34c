//go:build freebsd || openbsd || netbsd || dragonfly

package sysmem

import "golang.org/x/sys/unix"

// systemMemory uses sysctl. Available memory is only reported on FreeBSD
// and DragonFly; elsewhere the caller falls back to half the total.
func systemMemory() (total, available uint64, ok bool) {
	total, err := unix.SysctlUint64("hw.physmem")
	if err != nil || total == 0 {
		total, err = unix.SysctlUint64("hw.realmem")
		if err != nil || total == 0 {
			return 0, 0, false
		}
	}
	if free, err := unix.SysctlUint32("vm.stats.vm.v_free_count"); err == nil {
		available = uint64(free) * uint64(unix.Getpagesize())
	}
	return total, available, true
}
