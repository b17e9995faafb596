// Package debugdump renders store and batch state as human-readable text
// for log.V(3) tracing.
package debugdump

import "github.com/kylelemons/godebug/pretty"

// Default is the pretty.Config that Sprint and Diff use, tuned for
// single-line-per-field output suited to log lines.
var Default = &pretty.Config{
	Compact:           true,
	IncludeUnexported: false,
}

// Sprint renders v using Default, for embedding in a log.V(3).Infof call.
func Sprint(v interface{}) string {
	return Default.Sprint(v)
}

// Diff renders the difference between a and b, for comparing two ticks'
// worth of store state during investigation.
func Diff(a, b interface{}) string {
	return Default.Compare(a, b)
}
