package util

import "runtime"

const (
	minPoolSize = 4
	maxPoolSize = 32
)

// GetOptimalPoolSize returns the number of parsers per language and of
// analysis workers: twice the CPU count, clamped to [4, 32].
//
// Parsing runs in cgo, so two goroutines per core keep the CPUs busy while
// one of them is crossing the cgo boundary. The upper bound caps the memory
// held by idle parsers on large machines.
func GetOptimalPoolSize() int {
	size := runtime.NumCPU() * 2
	if size < minPoolSize {
		return minPoolSize
	}
	if size > maxPoolSize {
		return maxPoolSize
	}
	return size
}

// GetOptimalPoolSizeWithOverride returns override when it is positive,
// otherwise GetOptimalPoolSize().
func GetOptimalPoolSizeWithOverride(override int) int {
	if override > 0 {
		return override
	}
	return GetOptimalPoolSize()
}
