// Package middleware exposes net/http adapters over authcore.Engine.
//
// # Guards
//
//   - [Guard]: revocation check plus signature and expiry (Engine.Validate).
//   - [RequireJWTOnly]: signature and expiry only, no Redis call.
//   - [RequireRole]: role claim check on an already guarded request.
//   - [RequirePermissions]: re-reads the principal and requires every listed
//     permission (Engine.Authorize).
//
// Guards read the Authorization header and store the verified claims in the
// request context, see [ClaimsFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the principal store (Engine handles I/O).
//   - Leak the failure reason in response bodies.
package middleware
