// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tftf

import "go.mozilla.org/pkcs7"

// CertificateInfo is a best-effort, display-only decoding of a certificate
// section's payload. original_source/common/src/tftf.c treats IMS/CMS
// certificate sections as opaque byte ranges consumed only for their
// length; this never changes load/verify behavior, so a certificate
// section that fails to parse as PKCS#7 simply yields ok=false.
type CertificateInfo struct {
	Signers []string
}

// ParseCertificateSection opportunistically decodes a certificate
// section's raw payload as a PKCS#7 SignedData structure, for cmds/bromsim's
// -dump flag. It never returns an error: a payload that isn't PKCS#7 (or is
// some vendor-specific IMS/CMS blob) just yields ok=false.
func ParseCertificateSection(payload []byte) (info CertificateInfo, ok bool) {
	parsed, err := pkcs7.Parse(payload)
	if err != nil {
		return CertificateInfo{}, false
	}
	for _, cert := range parsed.Certificates {
		info.Signers = append(info.Signers, cert.Subject.CommonName)
	}
	return info, true
}
