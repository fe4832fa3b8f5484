// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/projectara/bootrom-sub001/pkg/bromerr"
	bromcrypto "github.com/projectara/bootrom-sub001/pkg/crypto"
)

// Conn is the bidirectional byte stream the client speaks frames over; a
// net.Conn satisfies it, and so does one end of net.Pipe() in tests.
type Conn interface {
	io.Reader
	io.Writer
}

// DefaultRetryBudget is the number of frames waitForAPReady reads while
// waiting for the peer's AP_READY request before it reports
// ErrFetchAPReadyTimeout. No other exchange is bounded by it: every other
// receive blocks until a frame arrives or the connection fails.
const DefaultRetryBudget = 512

const protocolMajor, protocolMinor = 1, 0

// FetchStorage implements storage.Storage by streaming bytes from a peer
// over Conn using the packet fetch protocol. It does not implement
// storage.RandomReader: the transport has no random-access primitive.
type FetchStorage struct {
	conn         Conn
	hasher       bromcrypto.Hasher
	stage        uint8
	retryBudget  int
	nextID       uint16
	firmwareSize uint32
	offset       uint32
	finished     bool
}

// NewFetchStorage returns a client ready to have Init called. stage
// identifies which firmware stage is being requested (the FIRMWARE_SIZE
// request payload); hasher receives the bytes Load is told to hash.
func NewFetchStorage(conn Conn, hasher bromcrypto.Hasher, stage uint8) *FetchStorage {
	return &FetchStorage{conn: conn, hasher: hasher, stage: stage, retryBudget: DefaultRetryBudget}
}

// Init implements storage.Storage. It runs the PROTOCOL_VERSION handshake,
// waits for the peer's AP_READY request, and fetches the firmware size for
// FetchStorage.stage.
func (c *FetchStorage) Init() error {
	verPayload := []byte{protocolMajor, protocolMinor}
	id, err := c.sendRequest(OpProtocolVersion, verPayload)
	if err != nil {
		return bromerr.ErrFetchConnected(err)
	}
	if _, _, err := c.receiveResponse(id, OpProtocolVersion); err != nil {
		return bromerr.ErrFetchConnected(err)
	}

	if err := c.waitForAPReady(); err != nil {
		return err
	}

	sizePayload := []byte{c.stage}
	id, err = c.sendRequest(OpFirmwareSize, sizePayload)
	if err != nil {
		return bromerr.ErrFetchFirmwareSize(err)
	}
	_, resp, err := c.receiveResponse(id, OpFirmwareSize)
	if err != nil {
		return bromerr.ErrFetchFirmwareSize(err)
	}
	if len(resp) < 4 {
		return bromerr.ErrFetchFirmwareSize(errShortResponse)
	}
	c.firmwareSize = binary.LittleEndian.Uint32(resp[0:4])
	return nil
}

// waitForAPReady discards frames until it sees an unsolicited AP_READY
// request, acks it, or the retry budget is exhausted.
func (c *FetchStorage) waitForAPReady() error {
	for i := 0; i < c.retryBudget; i++ {
		hdr, _, err := c.readFrame()
		if err != nil {
			return bromerr.ErrFetchRecv(err)
		}
		if hdr.IsResponse() || hdr.Op() != OpAPReady {
			continue
		}
		if err := c.writeFrame(ResponseHeader(hdr, 0, 0), nil); err != nil {
			return bromerr.ErrFetchRecv(err)
		}
		return nil
	}
	return bromerr.ErrFetchAPReadyTimeout()
}

// Load implements storage.Storage, fetching length bytes in MaxPayload
// chunks and optionally feeding each chunk to the hasher as it arrives
// (the inline simplification spec.md §9 Open Questions permits in place
// of the "hash the previous chunk" micro-optimisation).
func (c *FetchStorage) Load(dst []byte, length uint32, hash bool) error {
	if c.offset+length > c.firmwareSize || c.offset+length < c.offset {
		return bromerr.ErrFetchTooLarge(c.offset, length, c.firmwareSize)
	}

	var written uint32
	for written < length {
		chunk := length - written
		if chunk > MaxPayload {
			chunk = MaxPayload
		}
		payload, err := c.getFirmware(c.offset+written, chunk)
		if err != nil {
			return bromerr.ErrFetchGetFirmware(err)
		}
		copy(dst[written:written+chunk], payload)
		if hash {
			c.hasher.Update(payload)
		}
		written += chunk
	}
	c.offset += length
	return nil
}

func (c *FetchStorage) getFirmware(offset, length uint32) ([]byte, error) {
	reqPayload := make([]byte, 8)
	binary.LittleEndian.PutUint32(reqPayload[0:4], offset)
	binary.LittleEndian.PutUint32(reqPayload[4:8], length)

	id, err := c.sendRequest(OpGetFirmware, reqPayload)
	if err != nil {
		return nil, err
	}
	_, resp, err := c.receiveResponse(id, OpGetFirmware)
	if err != nil {
		return nil, err
	}
	if uint32(len(resp)) != length {
		return nil, errShortResponse
	}
	return resp, nil
}

// GetVIDPID queries the peer's unipro/ara VID/PID pair.
func (c *FetchStorage) GetVIDPID() (uniproVID, uniproPID uint32, err error) {
	id, err := c.sendRequest(OpGetVidPid, nil)
	if err != nil {
		return 0, 0, err
	}
	_, resp, err := c.receiveResponse(id, OpGetVidPid)
	if err != nil {
		return 0, 0, err
	}
	if len(resp) < 8 {
		return 0, 0, errShortResponse
	}
	return binary.LittleEndian.Uint32(resp[0:4]), binary.LittleEndian.Uint32(resp[4:8]), nil
}

// Finish implements storage.Storage, sending READY_TO_BOOT with the
// status byte the image load outcome maps to.
func (c *FetchStorage) Finish(valid, secure bool) error {
	if c.finished {
		return errAlreadyFinished
	}
	c.finished = true

	var status byte
	switch {
	case !valid:
		status = 0
	case !secure:
		status = 1
	default:
		status = 2
	}

	id, err := c.sendRequest(OpReadyToBoot, []byte{status})
	if err != nil {
		return bromerr.ErrFetchReady(err)
	}
	if _, _, err := c.receiveResponse(id, OpReadyToBoot); err != nil {
		return bromerr.ErrFetchReady(err)
	}
	return nil
}

func (c *FetchStorage) sendRequest(op Operation, payload []byte) (uint16, error) {
	id := c.nextID
	c.nextID++
	hdr := RequestHeader(id, op, uint16(len(payload)))
	if err := c.writeFrame(hdr, payload); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *FetchStorage) receiveResponse(wantID uint16, wantOp Operation) (FrameHeader, []byte, error) {
	hdr, payload, err := c.readFrame()
	if err != nil {
		return FrameHeader{}, nil, err
	}
	if !hdr.IsResponse() || hdr.ID != wantID || hdr.Op() != wantOp {
		return FrameHeader{}, nil, errUnexpectedFrame
	}
	if hdr.Status != 0 {
		return FrameHeader{}, nil, errProtocolStatus(hdr.Status)
	}
	return hdr, payload, nil
}

func (c *FetchStorage) writeFrame(hdr FrameHeader, payload []byte) error {
	if _, err := c.conn.Write(hdr.Encode()); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := c.conn.Write(payload)
	return err
}

func (c *FetchStorage) readFrame() (FrameHeader, []byte, error) {
	buf := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return FrameHeader{}, nil, err
	}
	hdr, err := DecodeFrameHeader(buf)
	if err != nil {
		return FrameHeader{}, nil, err
	}
	if hdr.Size == 0 {
		return hdr, nil, nil
	}
	payload := make([]byte, hdr.Size)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return FrameHeader{}, nil, err
	}
	return hdr, payload, nil
}

type clientError struct{ msg string }

func (e *clientError) Error() string { return e.msg }

func errProtocolStatus(status byte) error {
	return &clientError{msg: fmt.Sprintf("fetch: response carries protocol-level status %d", status)}
}

var (
	errShortResponse   = &clientError{"fetch: response payload shorter than expected"}
	errUnexpectedFrame = &clientError{"fetch: response frame did not match the pending request"}
	errAlreadyFinished = &clientError{"fetch: Finish called twice"}
)
