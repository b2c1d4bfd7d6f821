package otaripper

import (
	"fmt"

	"github.com/syedinsaf/otaripper/internal/manifest"
)

// DecodedPayload is the result of the Manifest Decoder: the parsed
// manifest plus the absolute offset of the operation data region that
// follows the header, manifest, and metadata signature (§4.2).
type DecodedPayload struct {
	Header          Header
	Manifest        *manifest.Manifest
	DataRegionStart uint64
}

// Decode reads the header and manifest out of r and validates them,
// rejecting unsupported payload versions. Incremental (delta) operation
// types are rejected per-partition by SelectPartitions, not here, since
// §4.2/§2 scope that refusal to the partitions actually selected for
// extraction — an unselected partition using SOURCE_COPY must not block a
// run that never touches it. Decode does not yet validate extents or touch
// the operation data region — that's the Extent Validator's job.
func Decode(r PayloadReader) (*DecodedPayload, error) {
	hdrBytes, err := r.Slice(0, headerSize)
	if err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(hdrBytes)
	if err != nil {
		return nil, err
	}

	manifestBytes, err := r.Slice(headerSize, hdr.ManifestLen)
	if err != nil {
		return nil, newErr(MalformedHeader, fmt.Errorf("manifest region out of bounds: %w", err))
	}

	m, err := manifest.Decode(manifestBytes)
	if err != nil {
		return nil, newErr(ManifestDecode, err)
	}

	dp := &DecodedPayload{
		Header:          hdr,
		Manifest:        m,
		DataRegionStart: hdr.dataRegionOffset(),
	}

	if dp.DataRegionStart > r.Len() {
		return nil, newErr(MalformedHeader, fmt.Errorf("data region offset %d exceeds payload length %d", dp.DataRegionStart, r.Len()))
	}

	return dp, nil
}

// SelectPartitions filters dp.Manifest.Partitions down to the requested
// names, preserving manifest order. An empty names set selects all
// partitions. It returns Unsupported if a requested name isn't present, or
// if any selected partition uses an incremental (delta) operation type —
// scoping that refusal to the selection, per §4.2/§2, so an unselected
// partition's SOURCE_COPY operations never block a run that doesn't touch
// it.
func (dp *DecodedPayload) SelectPartitions(names []string) ([]manifest.Partition, error) {
	var out []manifest.Partition
	if len(names) == 0 {
		out = dp.Manifest.Partitions
	} else {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			want[n] = true
		}
		for _, p := range dp.Manifest.Partitions {
			if want[p.Name] {
				out = append(out, p)
				delete(want, p.Name)
			}
		}
		for n := range want {
			return nil, newErr(Unsupported, fmt.Errorf("partition %q not found in payload", n))
		}
	}

	for _, p := range out {
		for i, op := range p.Operations {
			if op.Type.Incremental() {
				return nil, newOpErr(Unsupported, p.Name, i,
					fmt.Errorf("incremental operation type %s is not supported; use a full payload", op.Type))
			}
		}
	}

	return out, nil
}
