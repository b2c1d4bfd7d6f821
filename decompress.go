// Decompression streams a single operation's source bytes into its
// destination byte count. The teacher's per-operation switch in
// doExtractBootFromPayload (REPLACE/ZERO/REPLACE_BZ/REPLACE_XZ writing
// straight into an *os.File at a seek offset) is generalized here into
// decoders that write into a destination []byte sub-region instead of
// seeking a file, since the Output Mapper now hands out disjoint mmap
// sub-regions rather than an *os.File.
package otaripper

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/syedinsaf/otaripper/internal/manifest"
	"github.com/ulikunitz/xz"
)

// decompressInto fills dst with op's decompressed (or raw, or zero-filled)
// bytes, reading the exact payload slice [DataOffset, DataOffset+DataLength)
// for data-bearing types. len(dst) is the destination byte count; any
// mismatch between produced bytes and len(dst) is DecompressLengthMismatch.
func decompressInto(dst []byte, op manifest.Operation, src []byte) error {
	switch op.Type {
	case manifest.OpZero, manifest.OpDiscard:
		for i := range dst {
			dst[i] = 0
		}
		return nil

	case manifest.OpReplace:
		if len(src) != len(dst) {
			return fmt.Errorf("%w: REPLACE source %d bytes, destination %d bytes", errDecompressLen, len(src), len(dst))
		}
		copy(dst, src)
		return nil

	case manifest.OpReplaceBZ:
		r := bzip2.NewReader(bytes.NewReader(src))
		return streamExact(dst, r)

	case manifest.OpReplaceXZ:
		r, err := xz.NewReader(bytes.NewReader(src))
		if err != nil {
			return fmt.Errorf("xz: %w", err)
		}
		return streamExact(dst, r)

	default:
		return fmt.Errorf("operation type %s is not a supported full-payload encoding", op.Type)
	}
}

var errDecompressLen = fmt.Errorf("decompressed length mismatch")

// streamExact reads exactly len(dst) bytes from r into dst. Any short read
// or trailing data is a DecompressLengthMismatch; decompressInto's callers
// classify the returned error's Kind.
func streamExact(dst []byte, r io.Reader) error {
	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("%w: got %d bytes, want %d", errDecompressLen, n, len(dst))
	}
	// Confirm the stream doesn't have trailing bytes beyond dst's capacity,
	// which would mean the manifest's declared destination size undercounts
	// the real decompressed output.
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m > 0 {
		return fmt.Errorf("%w: stream produced more than %d bytes", errDecompressLen, len(dst))
	}
	return nil
}
