// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bromfetchd is a reference peer for the packet firmware-fetch
// protocol: it serves a stage-2 image file over a TCP listener so a
// bootrom core exercising pkg/fetch has something real to talk to,
// standing in for the other end of the interconnect in
// original_source/common/src/gbfw_fake_svc.c.
//
// Grounded on cmds/fittool's structured-options front end, using
// github.com/jessevdk/go-flags the same way, mirroring the split in the
// teacher between cmds/utk (stdlib flag) and cmds/fittool (go-flags).
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/projectara/bootrom-sub001/pkg/fetch/server"
)

type options struct {
	Listen    string `short:"l" long:"listen" description:"listen address" default:":4242"`
	Image     string `short:"i" long:"image" description:"path to the firmware image to serve" required:"true"`
	UniproVID uint32 `long:"unipro-vid" description:"UniPro vendor ID reported to GET_VID_PID"`
	UniproPID uint32 `long:"unipro-pid" description:"UniPro product ID reported to GET_VID_PID"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	image, err := os.ReadFile(opts.Image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bromfetchd: %v\n", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bromfetchd: %v\n", err)
		os.Exit(1)
	}
	defer ln.Close()
	fmt.Printf("bromfetchd: serving %s (%d bytes) on %s\n", opts.Image, len(image), opts.Listen)

	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "bromfetchd: %v\n", err)
			os.Exit(1)
		}
		go serveOne(conn, image, opts.UniproVID, opts.UniproPID)
	}
}

func serveOne(conn net.Conn, image []byte, uniproVID, uniproPID uint32) {
	defer conn.Close()
	if err := server.New(conn, image, uniproVID, uniproPID).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bromfetchd: session from %s ended: %v\n", conn.RemoteAddr(), err)
	}
}
