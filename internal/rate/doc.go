// Package rate implements Redis-backed fixed-window counters used to throttle
// login attempts per client address.
//
// # Window semantics
//
// INCR plus a conditional EXPIRE on the first hit. A window starts at the
// first failure and lasts Config.Window regardless of later hits. Keys are
// "<prefix>:<scope>:<subject>", for example "acrl:login:203.0.113.7".
//
// # What this package must NOT do
//
//   - Decide what to do when Redis is down. Callers receive
//     ErrRedisUnavailable and pick their own policy.
//   - Replace per-account lockout. Lockout lives with the principal store.
package rate
