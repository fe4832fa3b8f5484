// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tftf implements the image container format: a header followed by
// a variable set of typed sections (terminator, code/data, certificates,
// and signatures), and the streaming load+hash+verify state machine that
// consumes it.
//
// Grounded on pkg/uefi/update_positions.go's per-node-type dispatch during a
// tree walk, generalized from UEFI's flash-image/volume/file/section node
// types to TFTF's raw/compressed(rejected)/manifest/signature/certificate
// section types.
package tftf

import "encoding/binary"

// Sentinel is the 4-byte "TFTF" magic, little-endian 0x46544654.
const Sentinel uint32 = 0x46544654

// SectionType enumerates the section-descriptor types.
type SectionType uint32

const (
	SectionRawCode         SectionType = 1
	SectionRawData         SectionType = 2
	SectionCompressedCode  SectionType = 3 // reserved, rejected at runtime
	SectionCompressedData  SectionType = 4 // reserved, rejected at runtime
	SectionManifest        SectionType = 5
	SectionVendorReserved  SectionType = 0x7F // display-only, see SPEC_FULL.md
	SectionSignature       SectionType = 0x80
	SectionCertificate     SectionType = 0x81
	SectionEnd             SectionType = 0xFE
)

// String returns a human-readable name for display tooling.
func (t SectionType) String() string {
	switch t {
	case SectionRawCode:
		return "raw-code"
	case SectionRawData:
		return "raw-data"
	case SectionCompressedCode:
		return "compressed-code"
	case SectionCompressedData:
		return "compressed-data"
	case SectionManifest:
		return "manifest"
	case SectionVendorReserved:
		return "vendor-reserved"
	case SectionSignature:
		return "signature"
	case SectionCertificate:
		return "certificate"
	case SectionEnd:
		return "end"
	default:
		return "unknown"
	}
}

const (
	// HeaderSize is the fixed on-disk size of the image header.
	HeaderSize = 512
	// MaxSections is the number of section-descriptor slots in the table.
	MaxSections = 25
	// SectionDescriptorSize is the on-disk size of one section descriptor.
	SectionDescriptorSize = 16
	// SignaturePayloadSize is the fixed size of a signature section's
	// payload: 4 (length) + 4 (type) + 96 (key name) + 256 (signature).
	SignaturePayloadSize = 4 + 4 + 96 + 256
)

// SectionDescriptor is one entry of an image's section table.
type SectionDescriptor struct {
	SectionLength   uint32
	ExpandedLength  uint32
	CopyOffset      uint32
	SectionType     SectionType
}

// Header is the fixed 512-byte image container header.
type Header struct {
	BuildTimestamp [16]byte
	PackageName    [48]byte
	LoadLength     uint32
	LoadBase       uint32
	ExpandedLength uint32
	StartLocation  uint32
	UniproVID      uint32
	UniproPID      uint32
	AraVID         uint32
	AraPID         uint32
	Sections       [MaxSections]SectionDescriptor
}

// DecodeHeader parses a HeaderSize-byte buffer into a Header. Apart from
// rejecting a wrong sentinel, it does not validate the header or its
// section table; call Validate for that.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, errShortBuffer
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != Sentinel {
		return nil, errBadSentinel
	}
	h := &Header{}
	copy(h.BuildTimestamp[:], buf[4:20])
	copy(h.PackageName[:], buf[20:68])
	h.LoadLength = binary.LittleEndian.Uint32(buf[68:72])
	h.LoadBase = binary.LittleEndian.Uint32(buf[72:76])
	h.ExpandedLength = binary.LittleEndian.Uint32(buf[76:80])
	h.StartLocation = binary.LittleEndian.Uint32(buf[80:84])
	h.UniproVID = binary.LittleEndian.Uint32(buf[84:88])
	h.UniproPID = binary.LittleEndian.Uint32(buf[88:92])
	h.AraVID = binary.LittleEndian.Uint32(buf[92:96])
	h.AraPID = binary.LittleEndian.Uint32(buf[96:100])
	off := 100
	for i := 0; i < MaxSections; i++ {
		s := buf[off : off+SectionDescriptorSize]
		h.Sections[i] = SectionDescriptor{
			SectionLength:  binary.LittleEndian.Uint32(s[0:4]),
			ExpandedLength: binary.LittleEndian.Uint32(s[4:8]),
			CopyOffset:     binary.LittleEndian.Uint32(s[8:12]),
			SectionType:    SectionType(binary.LittleEndian.Uint32(s[12:16])),
		}
		off += SectionDescriptorSize
	}
	// Remaining bytes up to HeaderSize are the zero-pad; they are not read,
	// so neither DecodeHeader nor Validate checks that they are zero.
	return h, nil
}

// Encode serializes h into a HeaderSize-byte buffer.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Sentinel)
	copy(buf[4:20], h.BuildTimestamp[:])
	copy(buf[20:68], h.PackageName[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.LoadLength)
	binary.LittleEndian.PutUint32(buf[72:76], h.LoadBase)
	binary.LittleEndian.PutUint32(buf[76:80], h.ExpandedLength)
	binary.LittleEndian.PutUint32(buf[80:84], h.StartLocation)
	binary.LittleEndian.PutUint32(buf[84:88], h.UniproVID)
	binary.LittleEndian.PutUint32(buf[88:92], h.UniproPID)
	binary.LittleEndian.PutUint32(buf[92:96], h.AraVID)
	binary.LittleEndian.PutUint32(buf[96:100], h.AraPID)
	off := 100
	for i := 0; i < MaxSections; i++ {
		s := h.Sections[i]
		binary.LittleEndian.PutUint32(buf[off:off+4], s.SectionLength)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], s.ExpandedLength)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], s.CopyOffset)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], uint32(s.SectionType))
		off += SectionDescriptorSize
	}
	return buf
}

type tftfError struct{ msg string }

func (e *tftfError) Error() string { return e.msg }

var (
	errShortBuffer = &tftfError{"tftf: buffer shorter than header size"}
	errBadSentinel = &tftfError{"tftf: sentinel mismatch"}
)
