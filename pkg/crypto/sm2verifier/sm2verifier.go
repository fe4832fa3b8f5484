// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sm2verifier is a reference Verifier implementation for the
// Chinese SM2 signature algorithm, wired the same way
// pkg/intel/metadata/manifest/signature_types.go wires github.com/tjfoc/gmsm
// into an otherwise RSA/ECDSA-centric manifest signer: it lets a
// key_name-tagged SM2 key sit in the built-in key set alongside the RSA-2048
// keys handled by pkg/crypto/rsaverifier, for platforms that provision an
// SM2 root of trust instead of (or in addition to) RSA.
package sm2verifier

import (
	"errors"
	"math/big"

	"github.com/tjfoc/gmsm/sm2"

	bromcrypto "github.com/projectara/bootrom-sub001/pkg/crypto"
)

// sm2UID is the default user identity value used for SM2 signing per
// GB/T 32918.2, the same constant the teacher's manifest package hardcodes.
var sm2UID = []byte{0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38}

// Key is one built-in SM2 public key.
type Key struct {
	Name    string
	Public  *sm2.PublicKey
	Revoked bool
}

// Verifier is a built-in set of SM2 public keys.
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

// Verify implements bromcrypto.Verifier. The 256-byte signature payload is
// interpreted as two fixed-width big-endian big.Int halves (R, S), the same
// split pkg/intel/metadata/manifest/signature_types.go's NewSignatureByData
// uses for its SM2/ECDSA signature decoding.
func (v *Verifier) Verify(hash [32]byte, sig bromcrypto.Signature) error {
	name := sig.KeyNameString()
	k, ok := v.keys[name]
	if !ok {
		return errors.New("sm2verifier: unknown key " + name)
	}
	if k.Revoked {
		return errors.New("sm2verifier: revoked key " + name)
	}
	half := len(sig.Bytes) / 2
	r := new(big.Int).SetBytes(sig.Bytes[:half])
	s := new(big.Int).SetBytes(sig.Bytes[half:])
	if !sm2.Sm2Verify(k.Public, hash[:], sm2UID, r, s) {
		return errors.New("sm2verifier: signature verification failed for key " + name)
	}
	return nil
}
