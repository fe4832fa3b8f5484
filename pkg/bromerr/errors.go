// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bromerr implements the boot error taxonomy: a single 8-bit code
// space partitioned into 32-wide groups by source (fuse, image container,
// flash directory, crypto, fetch protocol), plus the sticky shift-packed
// boot-status accumulator those codes feed into.
package bromerr

import "fmt"

// Group identifies which subsystem raised an error, per spec.md §7.
type Group byte

const (
	GroupFuse      Group = 0x10
	GroupTFTF      Group = 0x20
	GroupFFFF      Group = 0x40
	GroupCrypto    Group = 0x60
	GroupFetch     Group = 0x80
)

// Coded is implemented by every error in the taxonomy. Group/Code together
// form the byte that gets shifted into a stage's StatusWord slot.
type Coded interface {
	error
	Group() Group
	Code() byte
}

// codedError is the shared representation for the taxonomy's leaf errors.
// It is unexported; callers only ever see the named constructors below, the
// same way pkg/intel/metadata/fit/errors.go exposes one struct type per
// failure mode rather than a shared base.
type codedError struct {
	group   Group
	offset  byte
	message string
}

func (e *codedError) Error() string { return e.message }
func (e *codedError) Group() Group  { return e.group }
func (e *codedError) Code() byte    { return byte(e.group) | e.offset }

func newErr(group Group, offset byte, format string, args ...interface{}) *codedError {
	return &codedError{group: group, offset: offset, message: fmt.Sprintf(format, args...)}
}

// Flash directory (FFFF) errors, group 0x40.
const (
	offFFFFLoadHeader byte = iota
	offFFFFHeaderSize
	offFFFFMemoryRange
	offFFFFSentinel
	offFFFFNoTableEnd
	offFFFFBlockSize
	offFFFFFlashCapacity
	offFFFFImageLength
	offFFFFHeaderNotFound
	offFFFFNoFirmware
	offFFFFElementRange
	offFFFFElementAlignment
	offFFFFCollision
	offFFFFDuplicate
)

func ErrFFFFLoadHeader(err error) *codedError {
	return newErr(GroupFFFF, offFFFFLoadHeader, "ffff: failed to load header: %v", err)
}
func ErrFFFFHeaderSize(got, min, max uint32) *codedError {
	return newErr(GroupFFFF, offFFFFHeaderSize, "ffff: header_size %d out of range [%d, %d]", got, min, max)
}
func ErrFFFFMemoryRange() *codedError {
	return newErr(GroupFFFF, offFFFFMemoryRange, "ffff: element location/length outside flash_image_length")
}
func ErrFFFFSentinel(which string) *codedError {
	return newErr(GroupFFFF, offFFFFSentinel, "ffff: %s sentinel mismatch", which)
}
func ErrFFFFNoTableEnd() *codedError {
	return newErr(GroupFFFF, offFFFFNoTableEnd, "ffff: element table has no end-of-table marker")
}
func ErrFFFFBlockSize(got, max uint32) *codedError {
	return newErr(GroupFFFF, offFFFFBlockSize, "ffff: erase_block_size %d exceeds max %d", got, max)
}
func ErrFFFFFlashCapacity(capacity, eraseBlock uint32) *codedError {
	return newErr(GroupFFFF, offFFFFFlashCapacity, "ffff: flash_capacity %d below floor 2*erase_block_size(%d)", capacity, eraseBlock)
}
func ErrFFFFImageLength(length, capacity uint32) *codedError {
	return newErr(GroupFFFF, offFFFFImageLength, "ffff: flash_image_length %d exceeds flash_capacity %d", length, capacity)
}
func ErrFFFFHeaderNotFound() *codedError {
	return newErr(GroupFFFF, offFFFFHeaderNotFound, "ffff: no valid directory header found")
}
func ErrFFFFNoFirmware(elementType uint32) *codedError {
	return newErr(GroupFFFF, offFFFFNoFirmware, "ffff: no element of type %d found in directory", elementType)
}
func ErrFFFFElementRange(id uint32) *codedError {
	return newErr(GroupFFFF, offFFFFElementRange, "ffff: element id=%d location/length invalid", id)
}
func ErrFFFFElementAlignment(id uint32) *codedError {
	return newErr(GroupFFFF, offFFFFElementAlignment, "ffff: element id=%d location misaligned", id)
}
func ErrFFFFCollision(idA, idB uint32) *codedError {
	return newErr(GroupFFFF, offFFFFCollision, "ffff: elements id=%d and id=%d overlap", idA, idB)
}
func ErrFFFFDuplicate(typ, id, gen uint32) *codedError {
	return newErr(GroupFFFF, offFFFFDuplicate, "ffff: duplicate element (type=%d,id=%d,gen=%d)", typ, id, gen)
}

// Image container (TFTF) errors, group 0x20.
const (
	offTFTFLoadHeader byte = iota
	offTFTFHeaderSize
	offTFTFMemoryRange
	offTFTFSentinel
	offTFTFNoTableEnd
	offTFTFNonZeroPad
	offTFTFLoadSignature
	offTFTFVIDPIDMismatch
	offTFTFCompressionUnsupported
	offTFTFSectionAfterSignature
	offTFTFCollision
	offTFTFStartNotInCode
	offTFTFImageCorrupted
	offTFTFUnknownSectionType
)

func ErrTFTFLoadHeader(err error) *codedError {
	return newErr(GroupTFTF, offTFTFLoadHeader, "tftf: failed to load header: %v", err)
}
func ErrTFTFHeaderSize() *codedError {
	return newErr(GroupTFTF, offTFTFHeaderSize, "tftf: header size/length relation invalid")
}
func ErrTFTFMemoryRange() *codedError {
	return newErr(GroupTFTF, offTFTFMemoryRange, "tftf: section copy_offset/expanded_length exceeds expanded_length, or falls outside the RAM window")
}
func ErrTFTFSentinel() *codedError {
	return newErr(GroupTFTF, offTFTFSentinel, "tftf: sentinel mismatch, expected 'TFTF'")
}
func ErrTFTFNoTableEnd() *codedError {
	return newErr(GroupTFTF, offTFTFNoTableEnd, "tftf: section table has no end-of-table marker")
}
func ErrTFTFNonZeroPad() *codedError {
	return newErr(GroupTFTF, offTFTFNonZeroPad, "tftf: unused descriptor slot or trailing bytes not zero")
}
func ErrTFTFLoadSignature(err error) *codedError {
	return newErr(GroupTFTF, offTFTFLoadSignature, "tftf: failed to load signature section: %v", err)
}
func ErrTFTFVIDPIDMismatch(field string, want, got uint32) *codedError {
	return newErr(GroupTFTF, offTFTFVIDPIDMismatch, "tftf: %s mismatch, fuse=%#x header=%#x", field, want, got)
}
func ErrTFTFCompressionUnsupported(sectionType uint32) *codedError {
	return newErr(GroupTFTF, offTFTFCompressionUnsupported, "tftf: compressed section type %#x is reserved but unsupported", sectionType)
}
func ErrTFTFSectionAfterSignature() *codedError {
	return newErr(GroupTFTF, offTFTFSectionAfterSignature, "tftf: non-certificate section follows a signature section")
}
func ErrTFTFCollision() *codedError {
	return newErr(GroupTFTF, offTFTFCollision, "tftf: two non-signature sections overlap")
}
func ErrTFTFStartNotInCode() *codedError {
	return newErr(GroupTFTF, offTFTFStartNotInCode, "tftf: start_location does not fall inside any raw-code section")
}
func ErrTFTFImageCorrupted() *codedError {
	return newErr(GroupTFTF, offTFTFImageCorrupted, "tftf: signatures present but none verified")
}
func ErrTFTFUnknownSectionType(sectionType uint32) *codedError {
	return newErr(GroupTFTF, offTFTFUnknownSectionType, "tftf: section type %#x is not recognized", sectionType)
}

// Fetch protocol errors, group 0x80.
const (
	offFetchControlCport byte = iota
	offFetchConnected
	offFetchTimeout
	offFetchRecv
	offFetchAPReadyTimeout
	offFetchFirmwareSize
	offFetchTooLarge
	offFetchGetFirmware
	offFetchReady
)

func ErrFetchControlCport(err error) *codedError {
	return newErr(GroupFetch, offFetchControlCport, "fetch: control channel setup failed: %v", err)
}
func ErrFetchConnected(err error) *codedError {
	return newErr(GroupFetch, offFetchConnected, "fetch: connect handshake failed: %v", err)
}
func ErrFetchTimeout(op string) *codedError {
	return newErr(GroupFetch, offFetchTimeout, "fetch: %s timed out waiting for a response", op)
}
func ErrFetchRecv(err error) *codedError {
	return newErr(GroupFetch, offFetchRecv, "fetch: receive failed: %v", err)
}
func ErrFetchAPReadyTimeout() *codedError {
	return newErr(GroupFetch, offFetchAPReadyTimeout, "fetch: timed out waiting for AP_READY")
}
func ErrFetchFirmwareSize(err error) *codedError {
	return newErr(GroupFetch, offFetchFirmwareSize, "fetch: FIRMWARE_SIZE request failed: %v", err)
}
func ErrFetchTooLarge(offset, length, firmwareSize uint32) *codedError {
	return newErr(GroupFetch, offFetchTooLarge, "fetch: offset(%d)+length(%d) exceeds firmware_size(%d)", offset, length, firmwareSize)
}
func ErrFetchGetFirmware(err error) *codedError {
	return newErr(GroupFetch, offFetchGetFirmware, "fetch: GET_FIRMWARE failed: %v", err)
}
func ErrFetchReady(err error) *codedError {
	return newErr(GroupFetch, offFetchReady, "fetch: READY_TO_BOOT failed: %v", err)
}

// Fuse errors, group 0x10. The fuse subsystem itself is out of scope (see
// spec.md §1) but the core still needs to be able to latch a fuse-layer
// failure code into the StatusWord when the external fuse-init call fails.
const (
	offFuseECC byte = iota
	offFuseVIDPID
	offFuseMasterSecret
)

func ErrFuseECC() *codedError {
	return newErr(GroupFuse, offFuseECC, "fuse: ECC check failed")
}
func ErrFuseVIDPID() *codedError {
	return newErr(GroupFuse, offFuseVIDPID, "fuse: VID/PID fuse values invalid")
}
func ErrFuseMasterSecret() *codedError {
	return newErr(GroupFuse, offFuseMasterSecret, "fuse: master secret fuse bank invalid")
}
