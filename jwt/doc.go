// Package jwt issues and verifies the compact signed access tokens handed to
// clients after authentication.
//
// Tokens carry everything a request needs to be authorized without a store
// round-trip: subject id, email, and the comma-joined role names held at
// issuance time. Verification checks the signature and expiry and performs no
// I/O, so role changes made after issuance only show up once a new token is
// minted.
package jwt
