// Package password hashes and verifies principal passwords.
//
// Two encodings are understood:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>   (Argon2)
//	$2a$<cost>$<salt+hash>                                          (Bcrypt)
//
// [Multi] dispatches verification on the stored hash prefix so records created
// under either scheme keep working while new hashes use the primary hasher.
//
// This package never stores passwords and never logs plaintext or parameters.
package password
