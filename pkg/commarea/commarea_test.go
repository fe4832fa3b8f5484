// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package commarea_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectara/bootrom-sub001/pkg/commarea"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var a commarea.Area
	a.SharedFunctions[0] = 0xdeadbeef
	copy(a.EndpointUniqueID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	a.SetFirmwareDescription([]byte("2026-07-30"))
	a.ResumeData = commarea.ResumeData{ResumeAddress: 0x1000, ResumeAddressComplement: ^uint32(0x1000)}

	buf := a.Encode()
	require.Len(t, buf, commarea.Size)

	got, err := commarea.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, a.SharedFunctions, got.SharedFunctions)
	assert.Equal(t, a.EndpointUniqueID, got.EndpointUniqueID)
	assert.True(t, got.ResumeData.Valid())
}

func TestResumeDataInvalidWhenNotComplementary(t *testing.T) {
	r := commarea.ResumeData{ResumeAddress: 0x1000, ResumeAddressComplement: 0x1000}
	assert.False(t, r.Valid())
}

func TestZero(t *testing.T) {
	var a commarea.Area
	a.SharedFunctions[0] = 1
	a.Zero()
	assert.Equal(t, [commarea.NumSharedFunctions]uint32{}, a.SharedFunctions)
}
