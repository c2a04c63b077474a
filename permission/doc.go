// Package permission resolves role/permission graphs into permission sets and
// maps role names to authority tags.
//
// # Model
//
// A principal holds a set of [Role] values; each role holds a set of
// [Permission] values. [Resolve] returns the union of permission names across
// all roles. Nothing here caches: callers pass the graph they just loaded, so
// decisions follow the latest stored roles instead of the roles embedded in an
// access token.
//
// # Authority tags
//
// [AuthorityTag] is the single place that turns a role name into the
// "ROLE_<NAME>" form expected by HTTP guards and downstream services.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or refresh.
//   - Hold mutable state outside an explicitly constructed [Registry].
package permission
