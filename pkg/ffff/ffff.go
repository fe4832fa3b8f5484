// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ffff implements the flash directory format: a two-copy,
// generation-numbered element table on block-aligned storage, and the
// resilient locator that finds the newest valid copy and the newest
// element of a requested type within it.
//
// Grounded on pkg/fmap's flat area-table-over-a-flash-blob model and
// pkg/intel/metadata/fit/table.go's table-scan-and-select-first-match
// shape, generalized to two redundant copies and generation numbers.
package ffff

import "encoding/binary"

// Sentinel is the 16-byte leading/trailing magic value, "FlashFormatForFW",
// per original_source/common/include/ffff.h's FFFF_SENTINEL_VALUE.
var Sentinel = [16]byte{'F', 'l', 'a', 's', 'h', 'F', 'o', 'r', 'm', 'a', 't', 'F', 'o', 'r', 'F', 'W'}

// ElementType enumerates the directory element types.
type ElementType uint32

const (
	ElementEnd        ElementType = 0
	ElementStage2Fw   ElementType = 1
	ElementStage3Fw   ElementType = 2
	ElementIMSCert    ElementType = 3
	ElementCMSCert    ElementType = 4
	ElementData       ElementType = 5
)

const (
	// HeaderSizeMin is the minimum and default directory header size.
	HeaderSizeMin = 512
	// HeaderSizeMax is the implementation maximum header size.
	HeaderSizeMax = 4096
	// EraseBlockSizeMax is the maximum allowed erase-block size (512 KiB).
	EraseBlockSizeMax = 512 * 1024
	// MaxElements is the number of element-descriptor slots in the table.
	MaxElements = 19
	// ElementDescriptorSize is the on-disk size of one element descriptor.
	ElementDescriptorSize = 20
	// PaddingSize is the size of the zero-filled padding field.
	PaddingSize = 16
	// SentinelSize is the size of each magic sentinel.
	SentinelSize = 16
	// probeLimit bounds the power-of-two probe used to find a second
	// header copy when the erase_block_size field itself is unreadable.
	probeLimit = 2 * EraseBlockSizeMax
)

// ElementDescriptor is one entry of a directory's element table.
type ElementDescriptor struct {
	Type       ElementType
	ID         uint32
	Generation uint32
	Location   uint32
	Length     uint32
}

// Header is the fixed-size directory record found at offset 0 of the
// storage, with an identical second copy at max(erase_block_size,
// header_size).
type Header struct {
	LeadingSentinel  [SentinelSize]byte
	BuildTimestamp   [16]byte
	ImageName        [48]byte
	FlashCapacity    uint32
	EraseBlockSize   uint32
	HeaderSize       uint32
	FlashImageLength uint32
	HeaderGeneration uint32
	Elements         [MaxElements]ElementDescriptor
	Padding          [PaddingSize]byte
	TrailingSentinel [SentinelSize]byte
}

// headerFieldsSize is the size, in bytes, of every Header field up to but
// not including the element table (used to compute byte offsets below).
const headerFieldsSize = SentinelSize + 16 + 48 + 4 + 4 + 4 + 4 + 4

// trailingSentinelOffset returns the byte offset of the trailing sentinel
// within a header of the given header_size, per spec.md §4.D
// (header_size - 16).
func trailingSentinelOffset(headerSize uint32) uint32 {
	return headerSize - SentinelSize
}

// DecodeHeader parses a HeaderSizeMin-byte (or larger) buffer into a Header.
// It does not validate the header; call ValidateHeader for that.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSizeMin {
		return nil, errShortBuffer
	}
	h := &Header{}
	copy(h.LeadingSentinel[:], buf[0:16])
	copy(h.BuildTimestamp[:], buf[16:32])
	copy(h.ImageName[:], buf[32:80])
	h.FlashCapacity = binary.LittleEndian.Uint32(buf[80:84])
	h.EraseBlockSize = binary.LittleEndian.Uint32(buf[84:88])
	h.HeaderSize = binary.LittleEndian.Uint32(buf[88:92])
	h.FlashImageLength = binary.LittleEndian.Uint32(buf[92:96])
	h.HeaderGeneration = binary.LittleEndian.Uint32(buf[96:100])
	off := 100
	for i := 0; i < MaxElements; i++ {
		e := buf[off : off+ElementDescriptorSize]
		h.Elements[i] = ElementDescriptor{
			Type:       ElementType(binary.LittleEndian.Uint32(e[0:4])),
			ID:         binary.LittleEndian.Uint32(e[4:8]),
			Generation: binary.LittleEndian.Uint32(e[8:12]),
			Location:   binary.LittleEndian.Uint32(e[12:16]),
			Length:     binary.LittleEndian.Uint32(e[16:20]),
		}
		off += ElementDescriptorSize
	}
	copy(h.Padding[:], buf[480:496])
	copy(h.TrailingSentinel[:], buf[496:512])
	return h, nil
}

// Encode serializes h back into a HeaderSizeMin-byte buffer (or longer, if
// header_size exceeds the minimum -- the trailing sentinel is then placed
// at header_size-16 and the intervening bytes are left zero, matching
// what a real header_size > 512 directory looks like on disk).
func (h *Header) Encode() []byte {
	size := h.HeaderSize
	if size < HeaderSizeMin {
		size = HeaderSizeMin
	}
	buf := make([]byte, size)
	copy(buf[0:16], h.LeadingSentinel[:])
	copy(buf[16:32], h.BuildTimestamp[:])
	copy(buf[32:80], h.ImageName[:])
	binary.LittleEndian.PutUint32(buf[80:84], h.FlashCapacity)
	binary.LittleEndian.PutUint32(buf[84:88], h.EraseBlockSize)
	binary.LittleEndian.PutUint32(buf[88:92], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[92:96], h.FlashImageLength)
	binary.LittleEndian.PutUint32(buf[96:100], h.HeaderGeneration)
	off := 100
	for i := 0; i < MaxElements; i++ {
		e := h.Elements[i]
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(e.Type))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.ID)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], e.Generation)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], e.Location)
		binary.LittleEndian.PutUint32(buf[off+16:off+20], e.Length)
		off += ElementDescriptorSize
	}
	copy(buf[480:496], h.Padding[:])
	trailOff := trailingSentinelOffset(size)
	copy(buf[trailOff:trailOff+SentinelSize], h.TrailingSentinel[:])
	return buf
}

type shortBufferError struct{}

func (shortBufferError) Error() string { return "ffff: buffer shorter than minimum header size" }

var errShortBuffer = shortBufferError{}
