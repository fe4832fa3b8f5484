// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crypto defines the Hasher and Verifier abstractions the image
// container engine drives. The primitives themselves (SHA-256, 2048-bit
// signature verification) are out of scope for the core; this package only
// fixes the contract, plus reference implementations used by tests and the
// simulator CLI.
package crypto

// Signature is the on-wire signature-section payload: the 96-byte key name
// identifying which built-in public key to try, and the raw signature
// bytes over the image hash.
type Signature struct {
	KeyName [96]byte
	Bytes   [256]byte
}

// KeyNameString trims the NUL padding off KeyName.
func (s Signature) KeyNameString() string {
	n := 0
	for n < len(s.KeyName) && s.KeyName[n] != 0 {
		n++
	}
	return string(s.KeyName[:n])
}

// Hasher is an incremental SHA-256 accumulator.
type Hasher interface {
	// Reset discards any accumulated state and starts a fresh hash.
	Reset()
	// Update feeds p into the running hash.
	Update(p []byte)
	// Sum returns the final digest. It does not reset the hasher.
	Sum() [32]byte
}

// Verifier holds the built-in set of trusted public keys and can check a
// hash against a signature naming one of them.
type Verifier interface {
	// IsKeyRevoked reports whether the key with the given name has been
	// revoked. The engine must consult this before
	// calling Verify and must treat a revoked key as a verification
	// failure without calling Verify at all.
	IsKeyRevoked(keyName string) bool

	// Verify checks sig against hash using the named key. It returns nil
	// on success.
	Verify(hash [32]byte, sig Signature) error
}
