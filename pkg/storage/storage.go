// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage defines the Storage abstraction the image-loading core
// drives regardless of whether the backing bytes come from raw flash or
// from the packet fetch protocol.
package storage

// Storage is a byte-addressable firmware source. Implementations must honor
// the sequencing contract: exactly one Init, then any mix of Read/Load,
// then exactly one Finish. A second call to Finish must return an error
// rather than hang or panic.
type Storage interface {
	// Init acquires the underlying resource. Called exactly once per boot
	// attempt, before any Read/Load.
	Init() error

	// Load performs a streaming read of length bytes continuing from
	// wherever the last Read/Load left off, into dst[:length]. If
	// hash is true, the bytes are also fed to the caller-managed Hasher.
	// Load must read exactly length bytes or return an error.
	Load(dst []byte, length uint32, hash bool) error

	// Finish releases resources. valid reports whether the overall image
	// load succeeded; secure reports whether it verified a signature.
	Finish(valid, secure bool) error
}

// RandomReader is implemented by Storage backends that support positioned,
// random-access reads (flash), and is not implemented by backends that only
// support sequential streaming (the packet fetch transport). Engines that
// need random access (the flash directory locator) must type-assert for it
// rather than assume every Storage supports it.
type RandomReader interface {
	// Read performs a random-access read of length bytes starting at
	// absolute addr into dst[:length]. addr == 0 is legal. length == 0 is
	// defined as "reposition to addr for the next Load", performing no I/O.
	Read(dst []byte, addr, length uint32) error
}
