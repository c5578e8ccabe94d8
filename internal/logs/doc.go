// Package logs reads daemon log files for `kubeport logs`.
//
// Last returns the final lines of a file together with the offset where they
// end; Follow then streams lines appended after that offset until its context
// is cancelled. A log file that does not exist yet is treated as empty, since
// a daemon creates it lazily on first launch.
package logs
