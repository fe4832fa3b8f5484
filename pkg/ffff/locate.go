// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ffff

import (
	"github.com/projectara/bootrom-sub001/pkg/bromerr"
	"github.com/projectara/bootrom-sub001/pkg/storage"
)

// Element is the result of a successful Locate: the position and length of
// the selected element's payload within storage.
type Element struct {
	Position uint32
	Length   uint32
}

// Locate implements spec.md §4.D: find the newest valid directory header
// (when the first copy is valid, also reading the second copy at its
// canonical offset; when the first copy is damaged, probing power-of-two
// offsets for a sole valid copy instead), then select the newest element of
// desiredType from it, and position storage at that element via a
// zero-length Read.
func Locate(st storage.RandomReader, desiredType ElementType) (Element, error) {
	buf1 := make([]byte, HeaderSizeMin)
	if err := st.Read(buf1, 0, HeaderSizeMin); err != nil {
		return Element{}, bromerr.ErrFFFFLoadHeader(err)
	}
	h1, err := DecodeHeader(buf1)
	if err != nil {
		return Element{}, bromerr.ErrFFFFLoadHeader(err)
	}

	var candidates []*Header
	if ValidateHeader(h1) == nil {
		candidates = append(candidates, h1)
		secondOffset := maxU32(h1.EraseBlockSize, h1.HeaderSize)
		buf2 := make([]byte, HeaderSizeMin)
		if err := st.Read(buf2, secondOffset, HeaderSizeMin); err == nil {
			if h2, err := DecodeHeader(buf2); err == nil && ValidateHeader(h2) == nil {
				candidates = append(candidates, h2)
			}
		}
	} else {
		for offset := uint32(HeaderSizeMin); offset <= probeLimit; offset *= 2 {
			buf := make([]byte, HeaderSizeMin)
			if err := st.Read(buf, offset, HeaderSizeMin); err != nil {
				continue
			}
			h, err := DecodeHeader(buf)
			if err != nil {
				continue
			}
			if ValidateHeader(h) == nil {
				candidates = append(candidates, h)
				break
			}
		}
	}

	if len(candidates) == 0 {
		return Element{}, bromerr.ErrFFFFHeaderNotFound()
	}

	selected := candidates[0]
	for _, c := range candidates[1:] {
		if c.HeaderGeneration > selected.HeaderGeneration {
			selected = c
		}
	}

	var best *ElementDescriptor
	for i, e := range selected.Elements {
		if e.Type == ElementEnd {
			break
		}
		if e.Type != desiredType {
			continue
		}
		if best == nil || e.Generation > best.Generation {
			best = &selected.Elements[i]
		}
	}
	if best == nil {
		return Element{}, bromerr.ErrFFFFNoFirmware(uint32(desiredType))
	}

	if err := st.Read(nil, best.Location, 0); err != nil {
		return Element{}, bromerr.ErrFFFFLoadHeader(err)
	}
	return Element{Position: best.Location, Length: best.Length}, nil
}
