// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tftf

import (
	"github.com/hashicorp/go-multierror"

	"github.com/projectara/bootrom-sub001/pkg/bromerr"
)

// RAMWindow is the RAM range the host reports as available for section
// loads, reported by the caller (the boot controller) since the core has
// no memory-map knowledge of its own.
type RAMWindow struct {
	Base uint32
	Size uint32
}

// Contains reports whether [addr, addr+length) falls entirely inside w.
func (w RAMWindow) Contains(addr, length uint32) bool {
	if addr < w.Base {
		return false
	}
	end := addr + length
	if end < addr { // overflow
		return false
	}
	return end <= w.Base+w.Size
}

// ValidationResult carries the information the section-table scan records
// for the loader to use afterward, alongside any validation errors.
type ValidationResult struct {
	// PrefixLen is the header-buffer prefix length (H in spec.md §4.E) fed
	// to the hash the moment the first signature/certificate section is
	// found. Zero if the image carries no signature/certificate section.
	PrefixLen uint32
	// HasSignatureOrCert reports whether PrefixLen is meaningful.
	HasSignatureOrCert bool
	// StartInCode reports whether start_location falls inside some
	// raw-code section (only meaningful when StartLocation != 0).
	StartInCode bool
}

// Validate checks header per spec.md §3/§4.E step 1-2: sentinel already
// checked by DecodeHeader, length relations, the VID/PID wildcard-or-match
// rule against fuseIDs = {unipro_vid, unipro_pid, ara_vid, ara_pid}, and a
// single forward pass over the section table checking section types,
// length and memory ranges, start location and overlaps before any payload
// byte is streamed. Descriptor slots after the end-of-table marker and the
// header's trailing bytes are not checked for zero.
func Validate(h *Header, ram RAMWindow, fuseIDs [4]uint32) (ValidationResult, error) {
	var result *multierror.Error
	var vr ValidationResult

	if h.ExpandedLength < h.LoadLength {
		result = multierror.Append(result, bromerr.ErrTFTFHeaderSize())
	}

	fields := [4]struct {
		name string
		want uint32
		got  uint32
	}{
		{"unipro_vid", fuseIDs[0], h.UniproVID},
		{"unipro_pid", fuseIDs[1], h.UniproPID},
		{"ara_vid", fuseIDs[2], h.AraVID},
		{"ara_pid", fuseIDs[3], h.AraPID},
	}
	for _, f := range fields {
		if f.got != 0 && f.got != f.want {
			result = multierror.Append(result, bromerr.ErrTFTFVIDPIDMismatch(f.name, f.want, f.got))
		}
	}

	sawSignature := false
	sawEnd := false
	for i, s := range h.Sections {
		if s.SectionType == SectionEnd {
			sawEnd = true
			break
		}

		switch s.SectionType {
		case SectionRawCode, SectionRawData, SectionManifest:
			if sawSignature {
				result = multierror.Append(result, bromerr.ErrTFTFSectionAfterSignature())
			}
		case SectionCompressedCode, SectionCompressedData:
			result = multierror.Append(result, bromerr.ErrTFTFCompressionUnsupported(uint32(s.SectionType)))
		case SectionSignature, SectionCertificate:
			if !vr.HasSignatureOrCert {
				vr.HasSignatureOrCert = true
				vr.PrefixLen = sectionTableOffset(i)
			}
			if s.SectionType == SectionSignature {
				sawSignature = true
			}
		default:
			// Includes SectionVendorReserved: the original's
			// valid_tftf_type rejects anything it doesn't recognize
			// rather than treating it as streamable data.
			result = multierror.Append(result, bromerr.ErrTFTFUnknownSectionType(uint32(s.SectionType)))
		}

		if s.ExpandedLength < s.SectionLength {
			result = multierror.Append(result, bromerr.ErrTFTFMemoryRange())
		}
		if s.CopyOffset+s.ExpandedLength > h.ExpandedLength || s.CopyOffset+s.ExpandedLength < s.CopyOffset {
			result = multierror.Append(result, bromerr.ErrTFTFMemoryRange())
		}
		if s.SectionType != SectionSignature && !ram.Contains(h.LoadBase+s.CopyOffset, s.SectionLength) {
			result = multierror.Append(result, bromerr.ErrTFTFMemoryRange())
		}

		if s.SectionType == SectionRawCode && h.StartLocation != 0 {
			start := h.LoadBase + s.CopyOffset
			if h.StartLocation >= start && h.StartLocation < start+s.SectionLength {
				vr.StartInCode = true
			}
		}

		for _, other := range h.Sections[i+1:] {
			if other.SectionType == SectionEnd {
				break
			}
			if s.SectionType == SectionSignature || other.SectionType == SectionSignature {
				continue // signature sections are exempt from overlap checks
			}
			if sectionsOverlap(s, other) {
				result = multierror.Append(result, bromerr.ErrTFTFCollision())
			}
		}
	}
	if !sawEnd {
		result = multierror.Append(result, bromerr.ErrTFTFNoTableEnd())
	}
	if h.StartLocation != 0 && !vr.StartInCode {
		result = multierror.Append(result, bromerr.ErrTFTFStartNotInCode())
	}

	return vr, result.ErrorOrNil()
}

// sectionTableOffset returns the byte offset, within the 512-byte header
// buffer, of the i'th section descriptor -- i.e. where the "prefix that
// gets hashed" ends when section i is the first signature/certificate.
func sectionTableOffset(i int) uint32 {
	return 100 + uint32(i)*SectionDescriptorSize
}

func sectionsOverlap(a, b SectionDescriptor) bool {
	aStart, aEnd := a.CopyOffset, a.CopyOffset+a.ExpandedLength
	bStart, bEnd := b.CopyOffset, b.CopyOffset+b.ExpandedLength
	return aStart < bEnd && bStart < aEnd
}
