// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package endpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/projectara/bootrom-sub001/pkg/endpoint"
)

func TestDeriveEndpointIDIsDeterministic(t *testing.T) {
	var ims [endpoint.IMSSize]byte
	for i := range ims {
		ims[i] = byte(i)
	}
	a := endpoint.DeriveEndpointID(ims)
	b := endpoint.DeriveEndpointID(ims)
	assert.Equal(t, a, b)
}

func TestLegacyDerivationDiffersFromCorrected(t *testing.T) {
	var ims [endpoint.IMSSize]byte
	for i := range ims {
		ims[i] = byte(i * 7)
	}
	corrected := endpoint.DeriveEndpointID(ims)
	legacy := endpoint.DeriveEndpointIDLegacy(ims)
	assert.NotEqual(t, corrected, legacy, "the ES3 boot ROM mistake must reproduce a different (wrong) ID than the corrected derivation")
}

func TestZeroIMSIsStillWellDefined(t *testing.T) {
	var ims [endpoint.IMSSize]byte
	assert.NotPanics(t, func() {
		endpoint.DeriveEndpointID(ims)
		endpoint.DeriveEndpointIDLegacy(ims)
	})
}
