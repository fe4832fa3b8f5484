// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypto

import "crypto/sha256"

// SHA256Hasher is the reference Hasher implementation used by tests and the
// simulator CLI. Production targets are expected to supply a Hasher backed
// by a hardware SHA-256 engine instead.
type SHA256Hasher struct {
	h interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
		Reset()
	}
}

// NewSHA256Hasher returns a ready-to-use SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{h: sha256.New()}
}

func (s *SHA256Hasher) Reset() {
	if s.h == nil {
		s.h = sha256.New()
		return
	}
	s.h.Reset()
}

func (s *SHA256Hasher) Update(p []byte) {
	if s.h == nil {
		s.h = sha256.New()
	}
	_, _ = s.h.Write(p)
}

func (s *SHA256Hasher) Sum() [32]byte {
	var out [32]byte
	copy(out[:], s.h.Sum(nil))
	return out
}
