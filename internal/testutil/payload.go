// Package testutil builds synthetic payload.bin byte streams for tests,
// so package tests don't depend on a real signed OTA payload fixture.
package testutil

import (
	"encoding/binary"

	"github.com/syedinsaf/otaripper/internal/manifest"
)

// BuildPayload assembles a well-formed CrAU v2 payload: header, encoded
// manifest, a zero-length metadata signature, then data. Callers are
// responsible for making operation data_offset/data_length consistent
// with data.
func BuildPayload(m *manifest.Manifest, data []byte) []byte {
	manifestBytes := m.Encode()

	buf := make([]byte, 0, 24+len(manifestBytes)+len(data))
	buf = append(buf, []byte("CrAU")...)
	buf = appendU64(buf, 2)
	buf = appendU64(buf, uint64(len(manifestBytes)))
	buf = appendU32(buf, 0)
	buf = append(buf, manifestBytes...)
	buf = append(buf, data...)
	return buf
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}
