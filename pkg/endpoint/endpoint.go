// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package endpoint derives the 8-byte endpoint unique ID from the
// one-time-programmable master secret (IMS), a hash-chain grounded on
// original_source/chips/es3tsb/src/es3_efuse.c's get_endpoint_id.
//
// Fuse reading itself is out of scope (see pkg/bromerr's GroupFuse), so
// this package takes the 16-byte IMS value as a plain argument rather than
// reading it from hardware.
package endpoint

import "crypto/sha256"

// IMSSize is the length, in bytes, of the internal master secret.
const IMSSize = 16

// DeriveEndpointID computes the corrected endpoint ID:
//
//	Y1 = sha256(IMS[0:16] xor 0x3d...)
//	Z0 = sha256(Y1 || 0x01 * 32)
//	EP_UID = sha256(Z0)[0:8]
func DeriveEndpointID(ims [IMSSize]byte) [8]byte {
	var xored [IMSSize]byte
	for i, b := range ims {
		xored[i] = b ^ 0x3d
	}
	y1 := sha256.Sum256(xored[:])

	var zInput [32 + 32]byte
	copy(zInput[:32], y1[:])
	for i := 32; i < len(zInput); i++ {
		zInput[i] = 0x01
	}
	z0 := sha256.Sum256(zInput[:])

	epUID := sha256.Sum256(z0[:])
	var out [8]byte
	copy(out[:], epUID[:8])
	return out
}

// DeriveEndpointIDLegacy reproduces the ES3 boot ROM's hash-chain mistake,
// grounded on original_source/apps/sign_verify/src/start.c's
// calculate_es3_epuid: IMS is reinterpreted as four little-endian uint32
// words, each XORed with 0x3d3d3d3d but only its low byte is fed to the
// hash, and only 8 padding bytes of 0x01 are hashed instead of 32. It
// exists solely so hardware programmed under that boot ROM can have its
// endpoint ID recomputed for verification; new derivations must use
// DeriveEndpointID.
func DeriveEndpointIDLegacy(ims [IMSSize]byte) [8]byte {
	var y1Input [4]byte
	hasher := sha256.New()
	for w := 0; w < 4; w++ {
		word := leWord(ims, w*4)
		temp := word ^ 0x3d3d3d3d
		y1Input[w] = byte(temp)
	}
	hasher.Write(y1Input[:])
	var y1 [32]byte
	copy(y1[:], hasher.Sum(nil))

	hasher.Reset()
	hasher.Write(y1[:])
	for i := 0; i < 8; i++ {
		hasher.Write([]byte{0x01})
	}
	var z0 [32]byte
	copy(z0[:], hasher.Sum(nil))

	epUID := sha256.Sum256(z0[:])
	var out [8]byte
	copy(out[:], epUID[:8])
	return out
}

func leWord(buf [IMSSize]byte, offset int) uint32 {
	return uint32(buf[offset]) | uint32(buf[offset+1])<<8 | uint32(buf[offset+2])<<16 | uint32(buf[offset+3])<<24
}
