// Package lockout models brute-force lockout as an explicit state machine.
//
// # States
//
//   - Active: credentials are checked normally.
//   - Locked: LockedUntil is in the future; the password is not checked.
//   - LockExpiredPendingClear: LockedUntil has passed; the counter and lock
//     must be cleared before the attempt is evaluated.
//   - Disabled: the principal may not sign in, but the password is still
//     verified and failures still count.
//
// # Architecture boundaries
//
// Pure functions over a [Snapshot]. Persistence and atomicity belong to the
// principal store, which applies [Policy.Fail] under its own row lock.
//
// # What this package must NOT do
//
//   - Perform I/O or read the wall clock.
//   - Import authcore or any store package.
package lockout
