// Package token implements snagbox's legacy bearer credential.
//
// A raw token is "id:secret". The id locates the record; the secret is
// 32 bytes of entropy, bcrypt-hashed at rest and compared in constant time
// on validation. Mint returns the raw token exactly once.
//
// Validation stamps lastUsedAt in a detached goroutine so the hot auth path
// never waits on that write.
package token
