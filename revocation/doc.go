// Package revocation blacklists access tokens before their natural expiry.
//
// Entries live in Redis under <prefix>:<hex sha256(token)> with a TTL of
// max(Buffer, expiresAt-now), so an entry disappears shortly after the token
// it blocks would have expired anyway.
//
// # Unavailability
//
// Every call runs under a bounded timeout. When Redis errors, times out, or
// the store is disabled, the configured [Policy] decides the outcome:
//
//   - FailOpen (default): IsBlacklisted returns false and Blacklist writes
//     nothing and reports written=false, both after logging a warning.
//   - FailClosed: both return [ErrUnavailable] and the caller must reject.
//
// # What this package must NOT do
//
//   - Store or log raw token strings.
//   - Import authcore.
package revocation
