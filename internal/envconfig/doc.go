// Package envconfig loads server binaries' settings from the environment,
// after an optional .env file, and maps them onto authcore.Config.
//
// # What this package must NOT do
//
//   - Be imported by the authcore library itself. Library callers build
//     authcore.Config directly.
//   - Log secrets.
package envconfig
