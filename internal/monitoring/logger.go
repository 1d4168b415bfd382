// Package monitoring provides a process-wide logging seam.
//
// Packages that run inside the pipeline log through Logf so the binary
// can redirect or silence them without plumbing a logger through every
// constructor.
package monitoring

import "log"

// Logf is the logging function used throughout the service. Defaults to
// the standard library logger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the logging function. Passing nil installs a no-op
// logger, silencing the packages that log through this seam.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
