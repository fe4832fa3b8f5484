// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package commarea implements the fixed 1024-byte communication area at the
// top of RAM, written by stage N and read by stage N+1.
package commarea

import "encoding/binary"

// Size is the fixed size, in bytes, of the communication area.
const Size = 1024

// NumSharedFunctions is the number of shared-function pointer slots, per
// original_source/common/include/bootrom.h's NUMBER_OF_SHARED_FUNCTIONS.
const NumSharedFunctions = 5

const (
	sharedFunctionsSize       = NumSharedFunctions * 4
	endpointUniqueIDSize      = 8
	firmwareIdentitySize      = 32
	validationKeyNameSize     = 96
	firmwareDescriptionSize   = 64
	resumeDataSize            = 12
	tailSize                  = sharedFunctionsSize + endpointUniqueIDSize + firmwareIdentitySize +
		validationKeyNameSize + firmwareDescriptionSize + resumeDataSize
)

// ResumeData is the standby/resume integrity record. ResumeAddress is only
// considered valid when ResumeAddress ^ ResumeAddressComplement == 0xFFFFFFFF.
type ResumeData struct {
	JTAGDisabled            uint32
	ResumeAddress            uint32
	ResumeAddressComplement uint32
}

// Valid reports whether the resume-address integrity invariant holds.
func (r ResumeData) Valid() bool {
	return r.ResumeAddress^r.ResumeAddressComplement == 0xFFFFFFFF
}

// Area is the communication area's fixed tail fields. The region is
// preceded by zero-padding so these fields sit at the tail of the 1024-byte
// window, per spec.md §3.
type Area struct {
	SharedFunctions          [NumSharedFunctions]uint32
	EndpointUniqueID         [endpointUniqueIDSize]byte
	Stage2FirmwareIdentity   [firmwareIdentitySize]byte
	Stage2ValidationKeyName  [validationKeyNameSize]byte
	Stage2FirmwareDescription [firmwareDescriptionSize]byte
	ResumeData               ResumeData
}

// Zero re-initializes a to its zero value. The comm area is process-wide
// mutable state; the first-stage loader is responsible for calling this
// once before any stage writes to it.
func (a *Area) Zero() {
	*a = Area{}
}

// Encode serializes a into a Size-byte buffer with leading zero padding.
func (a *Area) Encode() []byte {
	buf := make([]byte, Size)
	off := Size - tailSize
	for i, fn := range a.SharedFunctions {
		binary.LittleEndian.PutUint32(buf[off+i*4:off+i*4+4], fn)
	}
	off += sharedFunctionsSize
	copy(buf[off:], a.EndpointUniqueID[:])
	off += endpointUniqueIDSize
	copy(buf[off:], a.Stage2FirmwareIdentity[:])
	off += firmwareIdentitySize
	copy(buf[off:], a.Stage2ValidationKeyName[:])
	off += validationKeyNameSize
	copy(buf[off:], a.Stage2FirmwareDescription[:])
	off += firmwareDescriptionSize
	binary.LittleEndian.PutUint32(buf[off:off+4], a.ResumeData.JTAGDisabled)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], a.ResumeData.ResumeAddress)
	binary.LittleEndian.PutUint32(buf[off+8:off+12], a.ResumeData.ResumeAddressComplement)
	return buf
}

// Decode parses a Size-byte buffer into an Area.
func Decode(buf []byte) (*Area, error) {
	if len(buf) < Size {
		return nil, errShortBuffer
	}
	a := &Area{}
	off := Size - tailSize
	for i := range a.SharedFunctions {
		a.SharedFunctions[i] = binary.LittleEndian.Uint32(buf[off+i*4 : off+i*4+4])
	}
	off += sharedFunctionsSize
	copy(a.EndpointUniqueID[:], buf[off:off+endpointUniqueIDSize])
	off += endpointUniqueIDSize
	copy(a.Stage2FirmwareIdentity[:], buf[off:off+firmwareIdentitySize])
	off += firmwareIdentitySize
	copy(a.Stage2ValidationKeyName[:], buf[off:off+validationKeyNameSize])
	off += validationKeyNameSize
	copy(a.Stage2FirmwareDescription[:], buf[off:off+firmwareDescriptionSize])
	off += firmwareDescriptionSize
	a.ResumeData.JTAGDisabled = binary.LittleEndian.Uint32(buf[off : off+4])
	a.ResumeData.ResumeAddress = binary.LittleEndian.Uint32(buf[off+4 : off+8])
	a.ResumeData.ResumeAddressComplement = binary.LittleEndian.Uint32(buf[off+8 : off+12])
	return a, nil
}

// SetFirmwareDescription copies build timestamp bytes into
// Stage2FirmwareDescription, truncating or zero-padding to fit.
func (a *Area) SetFirmwareDescription(buildTimestamp []byte) {
	var field [firmwareDescriptionSize]byte
	copy(field[:], buildTimestamp)
	a.Stage2FirmwareDescription = field
}

type commareaError struct{ msg string }

func (e *commareaError) Error() string { return e.msg }

var errShortBuffer = &commareaError{"commarea: buffer shorter than Size"}
