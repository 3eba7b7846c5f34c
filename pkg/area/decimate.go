package area

import "math"

// GiB is the size unit of the decimation tiers.
const GiB int64 = 1 << 30

// Sampling floors.
const (
	// MinFraction is the smallest sampling fraction ever applied.
	MinFraction = 0.01
	// LargeFileFraction caps sampling for files of 1 to 2 GiB.
	LargeFileFraction = 0.05
	// BytesPerPoint is the in-memory cost of one sampled point.
	BytesPerPoint = 16
)

// EffectiveFraction applies the size tiers to a requested sampling fraction.
// A request outside (0, 1] means no decimation. Files under 1 GiB keep the
// request; 1 to 2 GiB (inclusive) are capped at 5%; larger files at 1%.
func EffectiveFraction(sizeBytes int64, requested float64) float64 {
	f := requested
	if !(f > 0 && f <= 1) {
		f = 1
	}
	switch {
	case sizeBytes > 2*GiB:
		return math.Min(f, MinFraction)
	case sizeBytes >= GiB:
		return math.Min(f, LargeFileFraction)
	default:
		return f
	}
}

// FitFraction lowers fraction until the sampled buffer for points fits in
// availableBytes. The budget never pushes it below MinFraction, and the
// result never exceeds the requested fraction.
func FitFraction(points int64, fraction float64, availableBytes uint64) float64 {
	if points <= 0 {
		return fraction
	}
	need := float64(points) * fraction * BytesPerPoint
	if need <= float64(availableBytes) {
		return fraction
	}
	fit := float64(availableBytes) / (float64(points) * BytesPerPoint)
	return math.Min(fraction, math.Max(MinFraction, fit))
}

// Stride returns the sampling step for a fraction: round(1/fraction), at
// least 1.
func Stride(fraction float64) int64 {
	if !(fraction > 0) {
		return 1
	}
	n := int64(math.Round(1 / fraction))
	if n < 1 {
		return 1
	}
	return n
}

// SampledCount returns how many of points a stride keeps, counting from
// index 0.
func SampledCount(points, stride int64) int64 {
	if points <= 0 {
		return 0
	}
	if stride < 1 {
		stride = 1
	}
	return (points + stride - 1) / stride
}
