// Package internal groups helpers that are private to authcore.
//
// # Sub-packages
//
//   - audit: async security-event dispatch (Dispatcher + Sink implementations)
//   - envconfig: environment and .env loading for the server binaries
//   - flows: flow orchestrators for every Engine operation
//   - lockout: brute-force lockout state machine
//   - metrics: lock-free counters and latency histograms
//   - random: opaque token generation and hashing
//   - rate: Redis fixed-window counters for the login throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
