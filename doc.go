// Package authcore is an authentication and authorization core: credential
// verification with brute-force lockout, JWT access tokens carrying identity
// and role claims, opaque server-side refresh tokens, a Redis access-token
// blacklist that degrades to fail-open, and role/permission resolution.
//
// Build an [Engine] with [New], supply a [PrincipalStore] and a Redis client
// (or a custom refresh store), and call [Builder.Build]. Engine methods are
// safe to call from multiple goroutines afterwards.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// error sentinels and value types. Flow orchestration, the lockout state
// machine, audit dispatch and metrics live under internal/ and are never
// exported directly. Token encoding lives in jwt, stores in refresh and
// revocation, principal store implementations in store/.
//
// # What this package must NOT do
//
//   - Own the Redis client or the principal database; callers close them.
//   - Log raw access or refresh tokens.
//   - Let audit or metrics failures fail a request.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Known limitations
//
// Refresh tokens are not rotated on use. [Engine.ForceLogoutAll] removes
// refresh tokens only; access tokens already issued remain valid until they
// expire.
package authcore
