// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bootctl_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectara/bootrom-sub001/pkg/bootctl"
	"github.com/projectara/bootrom-sub001/pkg/bromerr"
	"github.com/projectara/bootrom-sub001/pkg/bromlog"
	"github.com/projectara/bootrom-sub001/pkg/commarea"
	"github.com/projectara/bootrom-sub001/pkg/crypto"
	"github.com/projectara/bootrom-sub001/pkg/fetch"
	"github.com/projectara/bootrom-sub001/pkg/fetch/server"
	"github.com/projectara/bootrom-sub001/pkg/ffff"
	"github.com/projectara/bootrom-sub001/pkg/storage"
	"github.com/projectara/bootrom-sub001/pkg/storage/memstorage"
	"github.com/projectara/bootrom-sub001/pkg/tftf"
)

const (
	eraseBlock = 4096
	ramBase    = 0x1000
)

type noopVerifier struct{}

func (noopVerifier) IsKeyRevoked(string) bool               { return false }
func (noopVerifier) Verify([32]byte, crypto.Signature) error { return nil }

// buildImage returns a minimal unsigned TFTF image: a header wrapping one
// raw-code section that fits entirely within ramWindow, entry point set to
// load_base.
func buildImage() []byte {
	payload := []byte("entry-stage2-firmware-blob")
	h := &tftf.Header{
		LoadBase:       ramBase,
		LoadLength:     uint32(len(payload)),
		ExpandedLength: uint32(len(payload)),
		StartLocation:  ramBase,
	}
	copy(h.PackageName[:], "stage2")
	h.Sections[0] = tftf.SectionDescriptor{
		SectionType:    tftf.SectionRawCode,
		CopyOffset:     0,
		SectionLength:  uint32(len(payload)),
		ExpandedLength: uint32(len(payload)),
	}
	h.Sections[1] = tftf.SectionDescriptor{SectionType: tftf.SectionEnd}

	buf := append([]byte{}, h.Encode()...)
	return append(buf, payload...)
}

// buildImageWithHeaderSizeMismatch returns a TFTF image whose only defect
// is ExpandedLength < LoadLength, the first check Validate performs, before
// the VID/PID checks and the section table walk.
func buildImageWithHeaderSizeMismatch() []byte {
	payload := []byte("entry-stage2-firmware-blob")
	h := &tftf.Header{
		LoadBase:       ramBase,
		LoadLength:     uint32(len(payload)) + 1,
		ExpandedLength: uint32(len(payload)),
		StartLocation:  ramBase,
	}
	copy(h.PackageName[:], "stage2")
	h.Sections[0] = tftf.SectionDescriptor{
		SectionType:    tftf.SectionRawCode,
		CopyOffset:     0,
		SectionLength:  uint32(len(payload)),
		ExpandedLength: uint32(len(payload)),
	}
	h.Sections[1] = tftf.SectionDescriptor{SectionType: tftf.SectionEnd}

	buf := append([]byte{}, h.Encode()...)
	return append(buf, payload...)
}

func ffffHeader(generation uint32, elements ...ffff.ElementDescriptor) *ffff.Header {
	h := &ffff.Header{
		LeadingSentinel:  ffff.Sentinel,
		TrailingSentinel: ffff.Sentinel,
		FlashCapacity:    16 * eraseBlock,
		EraseBlockSize:   eraseBlock,
		HeaderSize:       ffff.HeaderSizeMin,
		FlashImageLength: 16 * eraseBlock,
		HeaderGeneration: generation,
	}
	copy(h.Elements[:], elements)
	return h
}

func baseContext(t *testing.T) *bootctl.BootContext {
	t.Helper()
	return &bootctl.BootContext{
		Log:            bromlog.DefaultLogger,
		Comm:           &commarea.Area{},
		FuseInit:       func() ([4]uint32, error) { return [4]uint32{}, nil },
		Hasher:         crypto.NewSHA256Hasher(),
		Verifier:       noopVerifier{},
		AllowUntrusted: true,
		Publish:        func(word uint32) error { return nil },
	}
}

func TestRunBootsFromFlashWhenDirectoryHasFirmware(t *testing.T) {
	image := buildImage()
	flash := make([]byte, 16*eraseBlock)
	el := ffff.ElementDescriptor{Type: ffff.ElementStage2Fw, ID: 1, Generation: 1, Location: 4 * eraseBlock, Length: uint32(len(image))}
	h := ffffHeader(1, el)
	copy(flash[0:], h.Encode())
	copy(flash[eraseBlock:], h.Encode())
	copy(flash[4*eraseBlock:], image)

	ctx := baseContext(t)
	ctx.SPIBootSelected = true
	ctx.FlashStorage = memstorage.New(flash, ctx.Hasher)
	ctx.FlashRAM = make([]byte, 0x1000)
	ctx.FlashRAMWindow = tftf.RAMWindow{Base: ramBase, Size: 0x1000}
	ctx.FetchStorageFactory = func() (storage.Storage, error) {
		t.Fatal("fetch path must not be attempted when flash boot succeeds")
		return nil, nil
	}

	var jumpedEntry uint32
	var jumpedComm *commarea.Area
	ctx.Jump = func(entry uint32, comm *commarea.Area) error {
		jumpedEntry = entry
		jumpedComm = comm
		return nil
	}

	require.NoError(t, bootctl.Run(ctx))
	assert.Equal(t, uint32(ramBase), jumpedEntry)
	assert.Same(t, ctx.Comm, jumpedComm)
	assert.Equal(t, bromerr.StatusFinishedUntrusted, ctx.Status.Status())
}

func TestRunFallsBackToFetchWhenFlashDirectoryHasNoFirmware(t *testing.T) {
	// The directory is well-formed but has no Stage2Fw element at all, so
	// ffff.Locate fails and the flash path must be abandoned in favor of
	// the fetch path, per spec.md's fallback-on-failure rule.
	flash := make([]byte, 16*eraseBlock)
	h := ffffHeader(1, ffff.ElementDescriptor{Type: ffff.ElementData, ID: 1, Location: 4 * eraseBlock, Length: eraseBlock})
	copy(flash[0:], h.Encode())
	copy(flash[eraseBlock:], h.Encode())

	image := buildImage()
	clientConn, serverConn := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- server.New(serverConn, image, 0, 0).Run()
	}()

	ctx := baseContext(t)
	ctx.SPIBootSelected = true
	ctx.FlashStorage = memstorage.New(flash, ctx.Hasher)
	ctx.FlashRAM = make([]byte, 0x1000)
	ctx.FlashRAMWindow = tftf.RAMWindow{Base: ramBase, Size: 0x1000}
	ctx.FetchRAM = make([]byte, 0x1000)
	ctx.FetchRAMWindow = tftf.RAMWindow{Base: ramBase, Size: 0x1000}
	ctx.FetchStorageFactory = func() (storage.Storage, error) {
		return fetch.NewFetchStorage(clientConn, ctx.Hasher, 2), nil
	}

	var jumpedEntry uint32
	ctx.Jump = func(entry uint32, comm *commarea.Area) error {
		jumpedEntry = entry
		return nil
	}

	require.NoError(t, bootctl.Run(ctx))
	assert.Equal(t, uint32(ramBase), jumpedEntry)
	assert.Equal(t, bromerr.StatusFallbackFinishedUntrusted, ctx.Status.Status())
	require.NoError(t, <-done)
}

// TestRunLatchesTFTFValidationCodeNotGenericFailure guards against codeOf
// dropping a *multierror.Error on the floor: a TFTF validation failure must
// latch the real 0x20-group code into StageFlash, not the 0xFF fallback.
func TestRunLatchesTFTFValidationCodeNotGenericFailure(t *testing.T) {
	badImage := buildImageWithHeaderSizeMismatch()
	flash := make([]byte, 16*eraseBlock)
	badEl := ffff.ElementDescriptor{Type: ffff.ElementStage2Fw, ID: 1, Generation: 1, Location: 4 * eraseBlock, Length: uint32(len(badImage))}
	h := ffffHeader(1, badEl)
	copy(flash[0:], h.Encode())
	copy(flash[eraseBlock:], h.Encode())
	copy(flash[4*eraseBlock:], badImage)

	goodImage := buildImage()
	clientConn, serverConn := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- server.New(serverConn, goodImage, 0, 0).Run()
	}()

	ctx := baseContext(t)
	ctx.SPIBootSelected = true
	ctx.FlashStorage = memstorage.New(flash, ctx.Hasher)
	ctx.FlashRAM = make([]byte, 0x1000)
	ctx.FlashRAMWindow = tftf.RAMWindow{Base: ramBase, Size: 0x1000}
	ctx.FetchRAM = make([]byte, 0x1000)
	ctx.FetchRAMWindow = tftf.RAMWindow{Base: ramBase, Size: 0x1000}
	ctx.FetchStorageFactory = func() (storage.Storage, error) {
		return fetch.NewFetchStorage(clientConn, ctx.Hasher, 2), nil
	}
	ctx.Jump = func(entry uint32, comm *commarea.Area) error { return nil }

	require.NoError(t, bootctl.Run(ctx))
	assert.Equal(t, bromerr.ErrTFTFHeaderSize().Code(), ctx.Status.Slot(bromerr.StageFlash))
	require.NoError(t, <-done)
}
