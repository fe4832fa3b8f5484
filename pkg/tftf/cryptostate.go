// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tftf

// CryptoState is the per-image-load crypto state machine: Init -> Hashing ->
// Hashed -> Verified. Each state is a distinct concrete type behind a
// sealed interface (following the teacher's sealed-interface idiom for
// uefi.Firmware); the types do not restrict which state may follow which,
// so the order of transitions is enforced only by LoadImage.
type CryptoState interface {
	cryptoStateMarker()
	String() string
}

type initState struct{}
type hashingState struct{}
type hashedState struct{ hash [32]byte }
type verifiedState struct{ hash [32]byte }

func (initState) cryptoStateMarker()     {}
func (hashingState) cryptoStateMarker()  {}
func (hashedState) cryptoStateMarker()   {}
func (verifiedState) cryptoStateMarker() {}

func (initState) String() string     { return "Init" }
func (hashingState) String() string  { return "Hashing" }
func (hashedState) String() string   { return "Hashed" }
func (verifiedState) String() string { return "Verified" }

// Init is the starting state: no signature or certificate section has been
// encountered yet.
var Init CryptoState = initState{}

// Hashing returns the state entered the first time a signature or
// certificate section is encountered in the section table scan.
func Hashing() CryptoState { return hashingState{} }

// Hashed returns the state entered when the signature section payload has
// been fully consumed and the running hash finalized.
func Hashed(hash [32]byte) CryptoState { return hashedState{hash: hash} }

// Verified returns the state entered the first time a signature
// successfully verifies against hash.
func Verified(hash [32]byte) CryptoState { return verifiedState{hash: hash} }

// HashOf extracts the digest carried by Hashed or Verified states. It
// returns the zero hash and false for Init/Hashing.
func HashOf(s CryptoState) ([32]byte, bool) {
	switch st := s.(type) {
	case hashedState:
		return st.hash, true
	case verifiedState:
		return st.hash, true
	default:
		return [32]byte{}, false
	}
}

// IsVerified reports whether s is the terminal Verified state.
func IsVerified(s CryptoState) bool {
	_, ok := s.(verifiedState)
	return ok
}

// IsInit reports whether s is still the initial Init state (i.e. the image
// never presented a signature or certificate section).
func IsInit(s CryptoState) bool {
	_, ok := s.(initState)
	return ok
}
