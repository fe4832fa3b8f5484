// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch implements the packet-based firmware-fetch protocol: a
// framed request/response exchange over a reliable datagram transport,
// giving the image-loading core a Storage implementation that streams
// bytes from a remote peer instead of local flash.
//
// Grounded on pkg/uefi's small-interface style for Storage and on
// pkg/utk's driver-loop shape (a sequence of request/apply steps against
// a remote-feeling tree) for the client state machine.
package fetch

import "encoding/binary"

// FrameHeaderSize is the fixed on-wire size of a frame header.
const FrameHeaderSize = 8

// responseBit marks Type as a response rather than a request.
const responseBit = 0x80

// Operation identifies a fetch-protocol exchange.
type Operation uint8

const (
	OpProtocolVersion Operation = 1
	OpAPReady         Operation = 2
	OpFirmwareSize    Operation = 3
	OpGetFirmware     Operation = 4
	OpReadyToBoot     Operation = 5
	OpGetVidPid       Operation = 6
)

func (op Operation) String() string {
	switch op {
	case OpProtocolVersion:
		return "PROTOCOL_VERSION"
	case OpAPReady:
		return "AP_READY"
	case OpFirmwareSize:
		return "FIRMWARE_SIZE"
	case OpGetFirmware:
		return "GET_FIRMWARE"
	case OpReadyToBoot:
		return "READY_TO_BOOT"
	case OpGetVidPid:
		return "GET_VID_PID"
	default:
		return "UNKNOWN"
	}
}

// MaxPayload is the per-round-trip GET_FIRMWARE chunk size ceiling spec.md
// §4.F names (1 KiB); also the floor on implementation-defined maximum
// frame payload size (§6 requires MUST be >= 1024).
const MaxPayload = 1024

// FrameHeader is the 8-byte header prefixing every frame.
type FrameHeader struct {
	Size    uint16
	ID      uint16
	Type    uint8
	Status  uint8
	Padding uint16
}

// IsResponse reports whether Type's top bit is set.
func (h FrameHeader) IsResponse() bool { return h.Type&responseBit != 0 }

// Op returns the operation identified by the lower 7 bits of Type.
func (h FrameHeader) Op() Operation { return Operation(h.Type &^ responseBit) }

// RequestHeader builds a request frame header for op, with payload size.
func RequestHeader(id uint16, op Operation, payloadSize uint16) FrameHeader {
	return FrameHeader{Size: payloadSize, ID: id, Type: uint8(op)}
}

// ResponseHeader builds a response frame header echoing req's ID and
// operation, carrying status and payloadSize.
func ResponseHeader(req FrameHeader, status uint8, payloadSize uint16) FrameHeader {
	return FrameHeader{Size: payloadSize, ID: req.ID, Type: uint8(req.Op()) | responseBit, Status: status}
}

// Encode serializes h into a FrameHeaderSize-byte buffer.
func (h FrameHeader) Encode() []byte {
	buf := make([]byte, FrameHeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.Size)
	binary.LittleEndian.PutUint16(buf[2:4], h.ID)
	buf[4] = h.Type
	buf[5] = h.Status
	binary.LittleEndian.PutUint16(buf[6:8], h.Padding)
	return buf
}

// DecodeFrameHeader parses a FrameHeaderSize-byte buffer into a FrameHeader.
func DecodeFrameHeader(buf []byte) (FrameHeader, error) {
	if len(buf) < FrameHeaderSize {
		return FrameHeader{}, errShortFrameHeader
	}
	return FrameHeader{
		Size:    binary.LittleEndian.Uint16(buf[0:2]),
		ID:      binary.LittleEndian.Uint16(buf[2:4]),
		Type:    buf[4],
		Status:  buf[5],
		Padding: binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}

type fetchError struct{ msg string }

func (e *fetchError) Error() string { return e.msg }

var errShortFrameHeader = &fetchError{"fetch: buffer shorter than frame header size"}
