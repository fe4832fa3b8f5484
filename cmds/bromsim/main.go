// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bromsim simulates one boot attempt against a flash-image file on
// disk: it locates the stage-2 firmware element through the flash
// directory, loads and verifies it through the image container engine, and
// prints the outcome. It also offers standalone "-table" and "-dump" flags
// that inspect a flash image's directory or certificate sections without
// running a boot attempt.
//
// Grounded on cmds/utk/utk.go's flag-parsing-then-dispatch shape, using
// the stdlib flag package the same way cmds/utk does.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/projectara/bootrom-sub001/pkg/bootctl"
	"github.com/projectara/bootrom-sub001/pkg/bromlog"
	"github.com/projectara/bootrom-sub001/pkg/commarea"
	"github.com/projectara/bootrom-sub001/pkg/crypto"
	"github.com/projectara/bootrom-sub001/pkg/crypto/rsaverifier"
	"github.com/projectara/bootrom-sub001/pkg/ffff"
	"github.com/projectara/bootrom-sub001/pkg/storage"
	"github.com/projectara/bootrom-sub001/pkg/storage/memstorage"
	"github.com/projectara/bootrom-sub001/pkg/tftf"
)

func main() {
	image := flag.String("image", "", "path to a flash image file")
	ramBase := flag.Uint("ram-base", 4096, "RAM window base address")
	ramSize := flag.Uint("ram-size", 1048576, "RAM window size")
	allowUntrusted := flag.Bool("allow-untrusted", false, "boot an unsigned image instead of halting")
	tableOnly := flag.Bool("table", false, "print the flash directory and exit without booting")
	dump := flag.Bool("dump", false, "print the stage-2 image's certificate-section signers and exit without booting")
	flag.Parse()

	if *image == "" {
		fmt.Fprintln(os.Stderr, "bromsim: -image is required")
		os.Exit(1)
	}

	hasher := crypto.NewSHA256Hasher()
	fs, err := memstorage.OpenFile(*image, hasher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bromsim: %v\n", err)
		os.Exit(1)
	}
	defer fs.Close()

	if *tableOnly {
		if err := printDirectory(fs.Storage); err != nil {
			fmt.Fprintf(os.Stderr, "bromsim: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *dump {
		if err := dumpCertificates(fs.Storage); err != nil {
			fmt.Fprintf(os.Stderr, "bromsim: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ram := make([]byte, *ramSize)
	ctx := &bootctl.BootContext{
		Log:             bromlog.DefaultLogger,
		Comm:            &commarea.Area{},
		FuseInit:        func() ([4]uint32, error) { return [4]uint32{}, nil },
		SPIBootSelected: true,
		FlashStorage:    fs,
		FlashRAM:        ram,
		FlashRAMWindow:  tftf.RAMWindow{Base: uint32(*ramBase), Size: uint32(*ramSize)},
		Hasher:          hasher,
		Verifier:        rsaverifier.New(),
		AllowUntrusted:  *allowUntrusted,
		FetchStorageFactory: func() (storage.Storage, error) {
			return nil, fmt.Errorf("bromsim: no fetch-path peer configured")
		},
		Lockdown: func() error { fmt.Println("trust transition: lockdown"); return nil },
		Jump: func(entry uint32, comm *commarea.Area) error {
			fmt.Printf("jump to entry point %#08x (%s firmware description)\n",
				entry, humanize.Bytes(uint64(len(comm.Stage2FirmwareDescription))))
			return nil
		},
		Publish: func(word uint32) error {
			fmt.Printf("boot-status word: %#08x\n", word)
			return nil
		},
	}

	if err := bootctl.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bromsim: %v\n", err)
		os.Exit(1)
	}
}

// dumpCertificates locates the stage-2 firmware element, walks its section
// table, and opportunistically decodes every certificate section as PKCS#7
// SignedData, printing whatever signers it finds. On-disk, a section's
// payload immediately follows the header and the payloads of every section
// before it in the table, in table order (bootctl_test.go's buildImage
// relies on the same layout).
func dumpCertificates(st storage.RandomReader) error {
	el, err := ffff.Locate(st, ffff.ElementStage2Fw)
	if err != nil {
		return err
	}

	headerBuf := make([]byte, tftf.HeaderSize)
	if err := st.Read(headerBuf, el.Position, tftf.HeaderSize); err != nil {
		return err
	}
	header, err := tftf.DecodeHeader(headerBuf)
	if err != nil {
		return err
	}

	offset := el.Position + tftf.HeaderSize
	found := false
	for _, s := range header.Sections {
		if s.SectionType == tftf.SectionEnd {
			break
		}
		size := s.SectionLength
		if s.SectionType == tftf.SectionSignature {
			size = tftf.SignaturePayloadSize
		}
		if s.SectionType == tftf.SectionCertificate {
			payload := make([]byte, size)
			if err := st.Read(payload, offset, size); err != nil {
				return err
			}
			info, ok := tftf.ParseCertificateSection(payload)
			if !ok {
				fmt.Printf("certificate section at %#x: not PKCS#7 (vendor-specific blob)\n", offset)
			} else {
				found = true
				for _, signer := range info.Signers {
					fmt.Printf("certificate section at %#x: signer %q\n", offset, signer)
				}
			}
		}
		offset += size
	}
	if !found {
		fmt.Println("no PKCS#7 certificate sections found")
	}
	return nil
}

func printDirectory(st storage.RandomReader) error {
	buf := make([]byte, ffff.HeaderSizeMin)
	if err := st.Read(buf, 0, ffff.HeaderSizeMin); err != nil {
		return err
	}
	h, err := ffff.DecodeHeader(buf)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"type", "id", "generation", "location", "length"})
	for _, e := range h.Elements {
		if e.Type == ffff.ElementEnd {
			break
		}
		t.AppendRow(table.Row{e.Type, e.ID, e.Generation, fmt.Sprintf("%#x", e.Location), humanize.Bytes(uint64(e.Length))})
	}
	t.Render()
	return nil
}
