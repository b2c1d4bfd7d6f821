package otaripper

import (
	"encoding/binary"
	"fmt"
)

// PayloadMagic is the fixed 4-byte magic at the start of payload.bin.
const PayloadMagic = "CrAU"

// SupportedVersion is the only payload format version this engine accepts.
const SupportedVersion = 2

const headerSize = 24

// Header is the fixed-size framing at the start of a payload: magic,
// version, manifest length, and metadata-signature length.
type Header struct {
	Magic          [4]byte
	Version        uint64
	ManifestLen    uint64
	ManifestSigLen uint32
}

// decodeHeader reads and validates the 24-byte header from the front of b.
func decodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < headerSize {
		return h, newErr(MalformedHeader, fmt.Errorf("payload too short for header: %d bytes", len(b)))
	}
	copy(h.Magic[:], b[0:4])
	if string(h.Magic[:]) != PayloadMagic {
		return h, newErr(MalformedHeader, fmt.Errorf("bad magic %q", h.Magic[:]))
	}
	h.Version = binary.BigEndian.Uint64(b[4:12])
	if h.Version != SupportedVersion {
		return h, newErr(MalformedHeader, fmt.Errorf("unsupported version %d", h.Version))
	}
	h.ManifestLen = binary.BigEndian.Uint64(b[12:20])
	if h.ManifestLen == 0 {
		return h, newErr(MalformedHeader, fmt.Errorf("manifest length is zero"))
	}
	h.ManifestSigLen = binary.BigEndian.Uint32(b[20:24])
	return h, nil
}

// dataRegionOffset is the absolute offset of the first byte of operation
// data within the payload, per §4.2.
func (h Header) dataRegionOffset() uint64 {
	return headerSize + h.ManifestLen + uint64(h.ManifestSigLen)
}
