// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tftf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/projectara/bootrom-sub001/pkg/tftf"
)

func TestValidateRejectsUnrecognizedSectionType(t *testing.T) {
	h := buildHeader(8, 8, tftf.SectionDescriptor{
		SectionType:    tftf.SectionVendorReserved,
		CopyOffset:     0,
		SectionLength:  8,
		ExpandedLength: 8,
	})

	_, err := tftf.Validate(h, ramWindow, [4]uint32{})
	assert.Error(t, err, "an unrecognized section type, including vendor-reserved, must not be treated as streamable data")
}

func TestValidateAcceptsKnownSectionTypes(t *testing.T) {
	h := buildHeader(8, 8, rawSection(0, 8))
	_, err := tftf.Validate(h, ramWindow, [4]uint32{})
	assert.NoError(t, err)
}
