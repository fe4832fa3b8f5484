// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rsaverifier is a reference Verifier implementation over
// RSASSA-PKCS1v15 2048-bit keys, the algorithm spec.md names explicitly
// ("2048-bit signature verification"). Grounded on the algorithm-dispatch
// shape of pkg/intel/metadata/manifest/signature_types.go's
// NewSignatureData, specialized down to the one algorithm the core cares
// about.
package rsaverifier

import (
	"crypto"
	"crypto/rsa"

	bromcrypto "github.com/projectara/bootrom-sub001/pkg/crypto"
)

// Key is one built-in public key, named the way the signature section
// payload names it (§6, 96-byte ASCII key name).
type Key struct {
	Name    string
	Public  *rsa.PublicKey
	Revoked bool
}

// Verifier is a built-in set of RSA-2048 public keys.
type Verifier struct {
	keys map[string]*Key
}

// New builds a Verifier from a set of keys, keyed by name.
func New(keys ...Key) *Verifier {
	v := &Verifier{keys: make(map[string]*Key, len(keys))}
	for i := range keys {
		k := keys[i]
		v.keys[k.Name] = &k
	}
	return v
}

// IsKeyRevoked implements bromcrypto.Verifier.
func (v *Verifier) IsKeyRevoked(keyName string) bool {
	k, ok := v.keys[keyName]
	return !ok || k.Revoked
}

// Verify implements bromcrypto.Verifier.
func (v *Verifier) Verify(hash [32]byte, sig bromcrypto.Signature) error {
	name := sig.KeyNameString()
	k, ok := v.keys[name]
	if !ok {
		return errUnknownKey(name)
	}
	if k.Revoked {
		return errRevokedKey(name)
	}
	return rsa.VerifyPKCS1v15(k.Public, crypto.SHA256, hash[:], sig.Bytes[:])
}

type verifyError struct{ msg string }

func (e *verifyError) Error() string { return e.msg }

func errUnknownKey(name string) error  { return &verifyError{"rsaverifier: unknown key " + name} }
func errRevokedKey(name string) error  { return &verifyError{"rsaverifier: revoked key " + name} }
