// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunAuthenticate, RunRefresh, RunLogout, RunValidate, ...)
// accepts a typed dependency struct of function fields and returns results
// without side-effects beyond those dependencies. The Engine builds the
// dependency structs once and stays a thin façade; tests drive flows with
// plain closures.
//
// # Architecture boundaries
//
// Flow functions coordinate principal store, password hasher, token codec,
// refresh store, revocation store, audit and metrics. They do NOT own any of
// these resources; ownership stays with the Engine. Sentinel errors are
// injected through the Errors fields so callers can match them with errors.Is.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
