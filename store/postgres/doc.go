// Package postgres provides a PostgreSQL [authcore.PrincipalStore] and an
// audit sink that persists security events.
//
// Both work over a *sql.DB opened with the pgx stdlib driver (see [Open]).
//
// # Lockout atomicity
//
// RecordLoginFailure is a single UPDATE ... RETURNING statement. Postgres
// takes the row lock for the duration of the statement, so concurrent
// failures for one principal serialize and every attempt is counted. The
// threshold compare uses the incremented value inside the same statement.
//
// # What this package must NOT do
//
//   - Open transactions that span a password hash.
//   - Log password hashes or token material.
package postgres
