// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tftf_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bromcrypto "github.com/projectara/bootrom-sub001/pkg/crypto"
	"github.com/projectara/bootrom-sub001/pkg/storage/memstorage"
	"github.com/projectara/bootrom-sub001/pkg/tftf"
)

const ramBase = 0x1000

var ramWindow = tftf.RAMWindow{Base: ramBase, Size: 0x1000}

// recordingHasher records the exact byte slices it was asked to hash, in
// order, so tests can pin down exactly which bytes the engine fed it and
// when -- the hashing-timing invariant this file exists to cover.
type recordingHasher struct {
	chunks [][]byte
}

func (r *recordingHasher) Reset()          { r.chunks = nil }
func (r *recordingHasher) Update(p []byte) { r.chunks = append(r.chunks, append([]byte(nil), p...)) }
func (r *recordingHasher) Sum() [32]byte   { return [32]byte{0xAB} }

type stubVerifier struct {
	revoked map[string]bool
	valid   map[string]bool
}

func (v *stubVerifier) IsKeyRevoked(name string) bool { return v.revoked[name] }
func (v *stubVerifier) Verify(hash [32]byte, sig bromcrypto.Signature) error {
	if v.valid[sig.KeyNameString()] {
		return nil
	}
	return errors.New("stubVerifier: signature does not verify")
}

func encodeSignaturePayload(keyName string) []byte {
	buf := make([]byte, tftf.SignaturePayloadSize)
	copy(buf[8:104], keyName)
	return buf
}

// buildHeader fills in the header fields that every test scenario shares:
// wildcard VID/PID (zero matches any fuse value), no start_location check.
func buildHeader(expandedLength, loadLength uint32, sections ...tftf.SectionDescriptor) *tftf.Header {
	h := &tftf.Header{
		LoadBase:       ramBase,
		LoadLength:     loadLength,
		ExpandedLength: expandedLength,
	}
	copy(h.PackageName[:], "test-package")
	for i, s := range sections {
		h.Sections[i] = s
	}
	end := len(sections)
	h.Sections[end] = tftf.SectionDescriptor{SectionType: tftf.SectionEnd}
	return h
}

// buildStream concatenates the header followed by each section's on-wire
// payload in table order, matching the sequence LoadImage's Load calls
// expect: header first, then one payload per non-end descriptor.
func buildStream(h *tftf.Header, payloads ...[]byte) []byte {
	buf := append([]byte{}, h.Encode()...)
	for _, p := range payloads {
		buf = append(buf, p...)
	}
	return buf
}

func rawSection(offset, length uint32) tftf.SectionDescriptor {
	return tftf.SectionDescriptor{
		SectionType:    tftf.SectionRawData,
		CopyOffset:     offset,
		SectionLength:  length,
		ExpandedLength: length,
	}
}

func sigSection() tftf.SectionDescriptor {
	return tftf.SectionDescriptor{SectionType: tftf.SectionSignature}
}

func TestLoadImageHashesPreSignatureSectionsFromTheStart(t *testing.T) {
	payloadA := []byte("AAAAAAAA")
	payloadB := []byte("BBBBBBBB")
	h := buildHeader(16, 16, rawSection(0, 8), rawSection(8, 8), sigSection())

	stream := buildStream(h, payloadA, payloadB, encodeSignaturePayload("key-1"))
	hasher := &recordingHasher{}
	st := memstorage.New(stream, hasher)
	require.NoError(t, st.Init())

	verifier := &stubVerifier{valid: map[string]bool{"key-1": true}}
	ram := make([]byte, ramWindow.Size)

	result, err := tftf.LoadImage(st, ram, ramWindow, [4]uint32{}, hasher, verifier, false, nil)
	require.NoError(t, err)
	assert.True(t, result.Secure)

	require.Len(t, hasher.chunks, 3, "expected header prefix + both raw sections, in that order")
	assert.Equal(t, payloadA, hasher.chunks[1])
	assert.Equal(t, payloadB, hasher.chunks[2])
}

func TestLoadImageUnsignedAllowedWhenUntrustedPermitted(t *testing.T) {
	h := buildHeader(8, 8, rawSection(0, 8))
	stream := buildStream(h, []byte("AAAAAAAA"))
	hasher := &recordingHasher{}
	st := memstorage.New(stream, hasher)
	require.NoError(t, st.Init())
	ram := make([]byte, ramWindow.Size)

	result, err := tftf.LoadImage(st, ram, ramWindow, [4]uint32{}, hasher, &stubVerifier{}, true, nil)
	require.NoError(t, err)
	assert.False(t, result.Secure)
	assert.Empty(t, hasher.chunks, "unsigned image must never touch the hasher")
}

func TestLoadImageUnsignedRejectedWhenUntrustedNotPermitted(t *testing.T) {
	h := buildHeader(8, 8, rawSection(0, 8))
	stream := buildStream(h, []byte("AAAAAAAA"))
	hasher := &recordingHasher{}
	st := memstorage.New(stream, hasher)
	require.NoError(t, st.Init())
	ram := make([]byte, ramWindow.Size)

	_, err := tftf.LoadImage(st, ram, ramWindow, [4]uint32{}, hasher, &stubVerifier{}, false, nil)
	assert.Error(t, err)
}

func TestLoadImageSecondKeyVerifiesAfterFirstRevoked(t *testing.T) {
	h := buildHeader(8, 8, rawSection(0, 8), sigSection(), sigSection())
	stream := buildStream(h, []byte("AAAAAAAA"),
		encodeSignaturePayload("key-revoked"), encodeSignaturePayload("key-live"))
	hasher := &recordingHasher{}
	st := memstorage.New(stream, hasher)
	require.NoError(t, st.Init())
	ram := make([]byte, ramWindow.Size)

	verifier := &stubVerifier{
		revoked: map[string]bool{"key-revoked": true},
		valid:   map[string]bool{"key-live": true},
	}

	result, err := tftf.LoadImage(st, ram, ramWindow, [4]uint32{}, hasher, verifier, false, nil)
	require.NoError(t, err)
	assert.True(t, result.Secure)
}

func TestLoadImageRejectsMemoryRangeViolationBeforeStreaming(t *testing.T) {
	// CopyOffset+ExpandedLength exceeds the header's declared expanded
	// length, an invariant Validate must catch before any payload byte is
	// read off the wire.
	h := buildHeader(8, 8, rawSection(4, 8))
	stream := buildStream(h, []byte("AAAAAAAA"))
	hasher := &recordingHasher{}
	st := memstorage.New(stream, hasher)
	require.NoError(t, st.Init())
	ram := make([]byte, ramWindow.Size)

	_, err := tftf.LoadImage(st, ram, ramWindow, [4]uint32{}, hasher, &stubVerifier{}, true, nil)
	assert.Error(t, err)
	assert.Empty(t, hasher.chunks)
}

func TestLoadImageRejectsSectionAfterSignature(t *testing.T) {
	h := buildHeader(16, 16, sigSection(), rawSection(0, 8))
	stream := buildStream(h, encodeSignaturePayload("key-1"), []byte("AAAAAAAA"))
	hasher := &recordingHasher{}
	st := memstorage.New(stream, hasher)
	require.NoError(t, st.Init())
	ram := make([]byte, ramWindow.Size)

	verifier := &stubVerifier{valid: map[string]bool{"key-1": true}}
	_, err := tftf.LoadImage(st, ram, ramWindow, [4]uint32{}, hasher, verifier, false, nil)
	assert.Error(t, err)
}
