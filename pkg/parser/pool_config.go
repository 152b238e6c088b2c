package parser

import (
	"github.com/gnana997/cjslexer/pkg/util"
)

// getPoolSize returns the number of parsers kept per grammar. It matches the
// analysis worker count so workers never wait on a parser; override > 0
// replaces the CPU-based default.
func getPoolSize(override int) int {
	return util.GetOptimalPoolSizeWithOverride(override)
}
