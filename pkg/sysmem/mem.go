// Package sysmem detects total and currently available system memory.
//
// Available memory drives the hull sampling budget; when a platform cannot
// report it, half of the total is assumed.
package sysmem

// DefaultMemoryBytes is the fallback total (4 GB) used when platform
// detection fails or is unsupported.
const DefaultMemoryBytes uint64 = 4 * 1024 * 1024 * 1024

// Result holds one memory snapshot.
type Result struct {
	// TotalBytes is the installed physical memory.
	TotalBytes uint64

	// AvailableBytes is memory that can be allocated without swapping,
	// as far as the platform can tell.
	AvailableBytes uint64

	// Reliable is false when the values are fallback defaults.
	Reliable bool
}

// Total returns the current memory snapshot. On failure TotalBytes is
// DefaultMemoryBytes, AvailableBytes half of that, and Reliable false.
func Total() Result {
	total, avail, ok := systemMemory()
	if !ok || total == 0 {
		return Result{
			TotalBytes:     DefaultMemoryBytes,
			AvailableBytes: DefaultMemoryBytes / 2,
			Reliable:       false,
		}
	}
	if avail == 0 || avail > total {
		avail = total / 2
	}
	return Result{
		TotalBytes:     total,
		AvailableBytes: avail,
		Reliable:       true,
	}
}

// TotalBytes returns just the total memory value.
func TotalBytes() uint64 {
	return Total().TotalBytes
}

// AvailableBytes returns just the available memory value.
func AvailableBytes() uint64 {
	return Total().AvailableBytes
}
