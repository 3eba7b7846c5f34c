// Package humanfmt renders byte sizes, durations, counts, rates, acreage and
// point densities for log fields and terminal summaries.
package humanfmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

var byteUnits = []struct {
	size float64
	name string
}{
	{TiB, "TiB"},
	{GiB, "GiB"},
	{MiB, "MiB"},
	{KiB, "KiB"},
}

// scaleBytes picks the largest IEC unit not exceeding v.
func scaleBytes(v float64) (float64, string, bool) {
	for _, u := range byteUnits {
		if v >= u.size {
			return v / u.size, u.name, true
		}
	}
	return v, "B", false
}

// Bytes formats a byte count like "1.23 GiB".
func Bytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}
	v, unit, scaled := scaleBytes(float64(b))
	if !scaled {
		return fmt.Sprintf("%d B", b)
	}
	return fmt.Sprintf("%.2f %s", v, unit)
}

// BytesUint64 is like Bytes but for uint64.
func BytesUint64(b uint64) string {
	return Bytes(int64(b))
}

// Duration formats d compactly. Examples: "1.23s", "45.6ms", "789µs",
// "1m30s", "2h15m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		h := d / time.Hour
		m := (d % time.Hour) / time.Minute
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		m := d / time.Minute
		s := (d % time.Minute) / time.Second
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// Throughput formats bytes per duration, e.g. "123.4 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	v, unit, scaled := scaleBytes(float64(bytes) / d.Seconds())
	if !scaled {
		return fmt.Sprintf("%.0f B/s", v)
	}
	return fmt.Sprintf("%.2f %s/s", v, unit)
}

// Count formats n with a K/M/B suffix. Examples: "1.23M", "456.00K", "789".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}

	const (
		thousand = 1000
		million  = 1000 * thousand
		billion  = 1000 * million
	)

	switch {
	case n >= billion:
		return fmt.Sprintf("%.2fB", float64(n)/billion)
	case n >= million:
		return fmt.Sprintf("%.2fM", float64(n)/million)
	case n >= thousand:
		return fmt.Sprintf("%.2fK", float64(n)/thousand)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Acres formats an acreage with two decimals and thousands separators,
// e.g. "12,345.68 ac".
func Acres(a float64) string {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return fmt.Sprintf("%v ac", a)
	}
	return group(strconv.FormatFloat(a, 'f', 2, 64)) + " ac"
}

// Density formats a point density in points per square meter.
func Density(ptsPerSqm float64) string {
	return strconv.FormatFloat(ptsPerSqm, 'f', 2, 64) + " pts/m²"
}

// Fraction formats a 0..1 sampling fraction as a percentage.
func Fraction(f float64) string {
	return strconv.FormatFloat(f*100, 'f', -1, 64) + "%"
}

// group inserts commas into the integer part of a formatted number.
func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return sign + s
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
