// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ffff

import (
	"bytes"

	"github.com/hashicorp/go-multierror"

	"github.com/projectara/bootrom-sub001/pkg/bromerr"
)

// ValidateHeader checks, in order: leading sentinel, header_size range,
// trailing sentinel, erase_block_size cap, flash_capacity floor,
// flash_image_length cap, then a single forward pass over the element
// table checking type=END termination, range, alignment, and
// overlap/duplicate-triple against every later non-terminator entry. The
// padding field is not checked.
//
// All violations are accumulated into the returned multierror (so a
// caller can report every problem at once, the way
// pkg/visitors/validate.go's Validate visitor accumulates into []error);
// the first violation encountered is also what the caller should latch
// into a bromerr.StatusWord, since that is the one spec.md's error
// taxonomy treats as sticky.
func ValidateHeader(h *Header) error {
	var result *multierror.Error

	if !bytes.Equal(h.LeadingSentinel[:], Sentinel[:]) {
		result = multierror.Append(result, bromerr.ErrFFFFSentinel("leading"))
	}
	if h.HeaderSize < HeaderSizeMin || h.HeaderSize > HeaderSizeMax {
		result = multierror.Append(result, bromerr.ErrFFFFHeaderSize(h.HeaderSize, HeaderSizeMin, HeaderSizeMax))
	}
	if !bytes.Equal(h.TrailingSentinel[:], Sentinel[:]) {
		result = multierror.Append(result, bromerr.ErrFFFFSentinel("trailing"))
	}
	if h.EraseBlockSize > EraseBlockSizeMax {
		result = multierror.Append(result, bromerr.ErrFFFFBlockSize(h.EraseBlockSize, EraseBlockSizeMax))
	}
	if h.FlashCapacity < 2*h.EraseBlockSize {
		result = multierror.Append(result, bromerr.ErrFFFFFlashCapacity(h.FlashCapacity, h.EraseBlockSize))
	}
	if h.FlashImageLength > h.FlashCapacity {
		result = multierror.Append(result, bromerr.ErrFFFFImageLength(h.FlashImageLength, h.FlashCapacity))
	}

	minLocation := 2 * maxU32(h.EraseBlockSize, h.HeaderSize)
	sawEnd := false
	for i, e := range h.Elements {
		if e.Type == ElementEnd {
			sawEnd = true
			break
		}
		if e.Location < minLocation || e.Location+e.Length > h.FlashImageLength || e.Location+e.Length < e.Location {
			result = multierror.Append(result, bromerr.ErrFFFFElementRange(e.ID))
		}
		if h.EraseBlockSize != 0 && e.Location%h.EraseBlockSize != 0 {
			result = multierror.Append(result, bromerr.ErrFFFFElementAlignment(e.ID))
		}
		for _, other := range h.Elements[i+1:] {
			if other.Type == ElementEnd {
				break
			}
			if elementsOverlap(e, other) {
				result = multierror.Append(result, bromerr.ErrFFFFCollision(e.ID, other.ID))
			}
			if e.Type == other.Type && e.ID == other.ID && e.Generation == other.Generation {
				result = multierror.Append(result, bromerr.ErrFFFFDuplicate(uint32(e.Type), e.ID, e.Generation))
			}
		}
	}
	if !sawEnd {
		result = multierror.Append(result, bromerr.ErrFFFFNoTableEnd())
	}

	return result.ErrorOrNil()
}

func elementsOverlap(a, b ElementDescriptor) bool {
	aEnd := a.Location + a.Length
	bEnd := b.Location + b.Length
	return a.Location < bEnd && b.Location < aEnd
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
