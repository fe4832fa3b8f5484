// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ffff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectara/bootrom-sub001/pkg/ffff"
	"github.com/projectara/bootrom-sub001/pkg/storage/memstorage"
)

const eraseBlock = 4096

func validHeader(generation uint32, elements ...ffff.ElementDescriptor) *ffff.Header {
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

func buildImage(headers map[uint32]*ffff.Header, size int) []byte {
	buf := make([]byte, size)
	for offset, h := range headers {
		copy(buf[offset:], h.Encode())
	}
	return buf
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	h := validHeader(3, ffff.ElementDescriptor{
		Type: ffff.ElementStage2Fw, ID: 1, Generation: 1,
		Location: 2 * eraseBlock, Length: eraseBlock,
	})
	buf := h.Encode()
	got, err := ffff.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h.HeaderGeneration, got.HeaderGeneration)
	assert.Equal(t, h.Elements[0], got.Elements[0])
	assert.Nil(t, ffff.ValidateHeader(got))
}

func TestValidateHeaderBitFlipRejects(t *testing.T) {
	h := validHeader(1, ffff.ElementDescriptor{Type: ffff.ElementStage2Fw, ID: 1, Location: 2 * eraseBlock, Length: eraseBlock})
	buf := h.Encode()
	buf[0] ^= 0xFF // flip a bit in the leading sentinel
	corrupted, err := ffff.DecodeHeader(buf)
	require.NoError(t, err)
	assert.Error(t, ffff.ValidateHeader(corrupted))
}

func TestElementAtFlashCapacityBoundaryIsValid(t *testing.T) {
	h := validHeader(1, ffff.ElementDescriptor{
		Type: ffff.ElementStage2Fw, ID: 1,
		Location: 2 * eraseBlock, Length: 14 * eraseBlock, // location+length == flash_image_length
	})
	assert.NoError(t, ffff.ValidateHeader(h))
}

func TestLocateSelectsMaxGenerationElement(t *testing.T) {
	h := validHeader(5,
		ffff.ElementDescriptor{Type: ffff.ElementStage2Fw, ID: 1, Generation: 1, Location: 2 * eraseBlock, Length: eraseBlock},
		ffff.ElementDescriptor{Type: ffff.ElementStage2Fw, ID: 2, Generation: 2, Location: 3 * eraseBlock, Length: eraseBlock},
	)
	buf := buildImage(map[uint32]*ffff.Header{0: h, eraseBlock: h}, 16*eraseBlock)
	st := memstorage.New(buf, nil)
	require.NoError(t, st.Init())

	el, err := ffff.Locate(st, ffff.ElementStage2Fw)
	require.NoError(t, err)
	assert.Equal(t, uint32(3*eraseBlock), el.Position)
	assert.Equal(t, uint32(eraseBlock), el.Length)
}

func TestLocateFallsBackToSecondCopyWhenFirstCorrupted(t *testing.T) {
	good := validHeader(7, ffff.ElementDescriptor{Type: ffff.ElementStage2Fw, ID: 1, Generation: 1, Location: 2 * eraseBlock, Length: eraseBlock})
	buf := buildImage(map[uint32]*ffff.Header{eraseBlock: good}, 16*eraseBlock)
	// Zero out the leading sentinel of header #0 (it's all zero bytes anyway
	// here since nothing was written there, simulating corruption).
	st := memstorage.New(buf, nil)
	require.NoError(t, st.Init())

	el, err := ffff.Locate(st, ffff.ElementStage2Fw)
	require.NoError(t, err)
	assert.Equal(t, uint32(2*eraseBlock), el.Position)
}

func TestLocateNoFirmwareOfRequestedType(t *testing.T) {
	h := validHeader(1, ffff.ElementDescriptor{Type: ffff.ElementData, ID: 1, Location: 2 * eraseBlock, Length: eraseBlock})
	buf := buildImage(map[uint32]*ffff.Header{0: h, eraseBlock: h}, 16*eraseBlock)
	st := memstorage.New(buf, nil)
	require.NoError(t, st.Init())

	_, err := ffff.Locate(st, ffff.ElementStage2Fw)
	assert.Error(t, err)
}
