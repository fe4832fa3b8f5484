// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memstorage

import (
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/projectara/bootrom-sub001/pkg/crypto"
)

// FileStorage memory-maps a flash-image file read-only and exposes it as a
// Storage, the same trick github.com/saferwall/pe uses (via the same
// edsrzf/mmap-go library) to scan large PE binaries without copying them
// into the process.
type FileStorage struct {
	*Storage
	f    *os.File
	mmap mmap.MMap
}

// OpenFile memory-maps path read-only and wraps it as a Storage.
func OpenFile(path string, hasher crypto.Hasher) (*FileStorage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileStorage{
		Storage: New(m, hasher),
		f:       f,
		mmap:    m,
	}, nil
}

// Close unmaps the file and closes the underlying descriptor.
func (fs *FileStorage) Close() error {
	if err := fs.mmap.Unmap(); err != nil {
		fs.f.Close()
		return err
	}
	return fs.f.Close()
}
