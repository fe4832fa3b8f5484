// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server is a reference implementation of the peer side of the
// packet firmware-fetch protocol, grounded on
// original_source/common/src/gbfw_fake_svc.c and gbfw_server_start.c
// (the simulator's fake service answering the AP's fetch requests). It
// exists so pkg/fetch's client and cmds/bromfetchd have a real peer to
// talk to over net.Pipe or a TCP listener, the same role pkg/utk's test
// harness plays for exercising pkg/uefi end to end.
package server

import (
	"encoding/binary"
	"io"

	"github.com/projectara/bootrom-sub001/pkg/fetch"
)

// Server answers the fetch protocol against a single in-memory image.
type Server struct {
	conn       fetch.Conn
	image      []byte
	uniproVID  uint32
	uniproPID  uint32
}

// New returns a Server that will serve image's bytes for any FIRMWARE_SIZE
// / GET_FIRMWARE request, regardless of the requested stage.
func New(conn fetch.Conn, image []byte, uniproVID, uniproPID uint32) *Server {
	return &Server{conn: conn, image: image, uniproVID: uniproVID, uniproPID: uniproPID}
}

// Run drives the protocol to completion: handshake, AP_READY, firmware
// size, a GET_FIRMWARE loop, and READY_TO_BOOT. It returns nil once the
// client sends READY_TO_BOOT, or the first I/O error encountered.
func (s *Server) Run() error {
	if err := s.handleProtocolVersion(); err != nil {
		return err
	}
	if err := s.sendAPReady(); err != nil {
		return err
	}
	if err := s.handleFirmwareSize(); err != nil {
		return err
	}
	return s.serveLoop()
}

func (s *Server) handleProtocolVersion() error {
	hdr, payload, err := s.readFrame()
	if err != nil {
		return err
	}
	if hdr.Op() != fetch.OpProtocolVersion {
		return errUnexpected
	}
	return s.writeFrame(fetch.ResponseHeader(hdr, 0, uint16(len(payload))), payload)
}

// sendAPReady initiates the one exchange in the protocol where the peer
// (not the AP) sends the request, per spec.md §4.F's "until the server
// asks AP_READY".
func (s *Server) sendAPReady() error {
	id := uint16(1)
	req := fetch.RequestHeader(id, fetch.OpAPReady, 0)
	if err := s.writeFrame(req, nil); err != nil {
		return err
	}
	hdr, _, err := s.readFrame()
	if err != nil {
		return err
	}
	if !hdr.IsResponse() || hdr.ID != id || hdr.Op() != fetch.OpAPReady {
		return errUnexpected
	}
	return nil
}

func (s *Server) handleFirmwareSize() error {
	hdr, _, err := s.readFrame()
	if err != nil {
		return err
	}
	if hdr.Op() != fetch.OpFirmwareSize {
		return errUnexpected
	}
	resp := make([]byte, 4)
	binary.LittleEndian.PutUint32(resp, uint32(len(s.image)))
	return s.writeFrame(fetch.ResponseHeader(hdr, 0, 4), resp)
}

func (s *Server) serveLoop() error {
	for {
		hdr, payload, err := s.readFrame()
		if err != nil {
			return err
		}
		switch hdr.Op() {
		case fetch.OpGetFirmware:
			if err := s.handleGetFirmware(hdr, payload); err != nil {
				return err
			}
		case fetch.OpGetVidPid:
			resp := make([]byte, 8)
			binary.LittleEndian.PutUint32(resp[0:4], s.uniproVID)
			binary.LittleEndian.PutUint32(resp[4:8], s.uniproPID)
			if err := s.writeFrame(fetch.ResponseHeader(hdr, 0, 8), resp); err != nil {
				return err
			}
		case fetch.OpReadyToBoot:
			return s.writeFrame(fetch.ResponseHeader(hdr, 0, 0), nil)
		default:
			return errUnexpected
		}
	}
}

func (s *Server) handleGetFirmware(hdr fetch.FrameHeader, payload []byte) error {
	if len(payload) < 8 {
		return errUnexpected
	}
	offset := binary.LittleEndian.Uint32(payload[0:4])
	length := binary.LittleEndian.Uint32(payload[4:8])
	if uint64(offset)+uint64(length) > uint64(len(s.image)) {
		return s.writeFrame(fetch.ResponseHeader(hdr, 1, 0), nil)
	}
	return s.writeFrame(fetch.ResponseHeader(hdr, 0, uint16(length)), s.image[offset:offset+length])
}

func (s *Server) writeFrame(hdr fetch.FrameHeader, payload []byte) error {
	if _, err := s.conn.Write(hdr.Encode()); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := s.conn.Write(payload)
	return err
}

func (s *Server) readFrame() (fetch.FrameHeader, []byte, error) {
	buf := make([]byte, fetch.FrameHeaderSize)
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		return fetch.FrameHeader{}, nil, err
	}
	hdr, err := fetch.DecodeFrameHeader(buf)
	if err != nil {
		return fetch.FrameHeader{}, nil, err
	}
	if hdr.Size == 0 {
		return hdr, nil, nil
	}
	payload := make([]byte, hdr.Size)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return fetch.FrameHeader{}, nil, err
	}
	return hdr, payload, nil
}

type serverError struct{ msg string }

func (e *serverError) Error() string { return e.msg }

var errUnexpected = &serverError{"fetch/server: unexpected frame"}
