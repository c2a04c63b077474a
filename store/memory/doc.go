// Package memory is an in-process [authcore.PrincipalStore] for tests,
// examples and single-instance development servers.
//
// A single mutex guards every read-modify-write, so lockout counters are
// never under-counted when failures race. State is lost on restart and is not
// shared between processes.
package memory
