// Package refresh persists opaque refresh tokens.
//
// # Token format
//
// 256 random bits, base64url without padding. Tokens carry no structure and
// are never decoded, only looked up. Backends key rows on the hex sha256 of the
// token so the plaintext never reaches storage.
//
// # Backends
//
//   - [RedisStore]: one hash per token plus a per-principal index set. Keys
//     outlive the token by Config.Retention so an expired token is reported as
//     expired rather than unknown until it is swept.
//   - [SQLStore]: a refresh_tokens table in PostgreSQL dialect, used through the
//     pgx database/sql driver.
//
// # Architecture boundaries
//
// Stores report what they hold. Expiry decisions belong to the engine, which
// compares [Record.ExpiresAt] with its own clock.
//
// # What this package must NOT do
//
//   - Log or persist raw tokens.
//   - Import authcore or jwt.
//   - Rotate tokens.
package refresh
