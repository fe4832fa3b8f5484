// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memstorage is an in-memory Storage backend used by tests and the
// bromsim CLI. It wraps a flat []byte the way pkg/intel/metadata/fit wraps
// raw firmware bytes with github.com/xaionaro-go/bytesextra to get a
// seekable reader without copying.
package memstorage

import (
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/projectara/bootrom-sub001/pkg/crypto"
)

// Storage is a Storage/RandomReader implementation backed by a flat byte
// slice, standing in for raw serial flash.
type Storage struct {
	buf    []byte
	rws    io.ReadWriteSeeker
	hasher crypto.Hasher

	initialized bool
	finished    bool
}

// New wraps buf (which is not copied) as a Storage.
func New(buf []byte, hasher crypto.Hasher) *Storage {
	return &Storage{buf: buf, rws: bytesextra.NewReadWriteSeeker(buf), hasher: hasher}
}

func (s *Storage) Init() error {
	if s.initialized {
		return errAlreadyInitialized
	}
	s.initialized = true
	return nil
}

// Read implements storage.RandomReader.
func (s *Storage) Read(dst []byte, addr, length uint32) error {
	if _, err := s.rws.Seek(int64(addr), io.SeekStart); err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	_, err := io.ReadFull(s.rws, dst[:length])
	return err
}

// Load implements storage.Storage.
func (s *Storage) Load(dst []byte, length uint32, hash bool) error {
	if _, err := io.ReadFull(s.rws, dst[:length]); err != nil {
		return err
	}
	if hash && s.hasher != nil {
		s.hasher.Update(dst[:length])
	}
	return nil
}

func (s *Storage) Finish(valid, secure bool) error {
	if s.finished {
		return errAlreadyFinished
	}
	s.finished = true
	return nil
}

type memstorageError struct{ msg string }

func (e *memstorageError) Error() string { return e.msg }

var (
	errAlreadyInitialized = &memstorageError{"memstorage: Init called twice"}
	errAlreadyFinished    = &memstorageError{"memstorage: Finish called twice"}
)
