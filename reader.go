package otaripper

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// PayloadReader presents payload bytes as a random-access byte region,
// whether backed by a memory-mapped file or an in-memory buffer. The
// teacher's ZipFileSeekReader/ZipPayloadReader hand out payload bytes
// through a stateful io.Reader/io.ReaderAt; this generalizes that idea to
// a single bounds-checked slice view, since the engine needs concurrent
// random-access reads from many workers rather than one sequential stream.
type PayloadReader interface {
	// Len returns the total size of the payload in bytes.
	Len() uint64
	// Slice returns a read-only view of b[offset : offset+length]. It
	// returns an *Error of Kind OutOfBounds if the range exceeds Len().
	Slice(offset, length uint64) ([]byte, error)
	// Close releases the underlying mapping or buffer.
	Close() error
}

// mmapPayloadReader backs a PayloadReader with a read-only memory map of
// payload.bin, the preferred backing per §4.1.
type mmapPayloadReader struct {
	f   *os.File
	m   mmap.MMap
	len uint64
}

// OpenPayloadFile memory-maps path read-only and returns a PayloadReader
// over it.
func OpenPayloadFile(path string) (PayloadReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newErr(InputIO, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newErr(InputIO, err)
	}
	if st.Size() == 0 {
		f.Close()
		return nil, newErr(InputIO, fmt.Errorf("%s: empty file", path))
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, newErr(InputIO, fmt.Errorf("mmap %s: %w", path, err))
	}
	return &mmapPayloadReader{f: f, m: m, len: uint64(st.Size())}, nil
}

func (r *mmapPayloadReader) Len() uint64 { return r.len }

func (r *mmapPayloadReader) Slice(offset, length uint64) ([]byte, error) {
	end := offset + length
	if end < offset || end > r.len {
		return nil, newErr(OutOfBounds, fmt.Errorf("slice [%d:%d] exceeds payload length %d", offset, end, r.len))
	}
	return r.m[offset:end:end], nil
}

func (r *mmapPayloadReader) Close() error {
	if err := r.m.Unmap(); err != nil {
		r.f.Close()
		return newErr(InputIO, err)
	}
	return newErrOrNil(InputIO, r.f.Close())
}

// bufferPayloadReader backs a PayloadReader with an in-memory buffer, used
// when the payload was extracted from a ZIP entry below the in-RAM
// threshold rather than opened directly from disk (§4.1). The ZIP lookup
// itself is an external collaborator's job; this engine only needs the
// resulting bytes.
type bufferPayloadReader struct {
	buf []byte
}

// NewBufferPayloadReader wraps an in-memory payload buffer, e.g. one an
// external ZIP reader decompressed into RAM.
func NewBufferPayloadReader(buf []byte) PayloadReader {
	return &bufferPayloadReader{buf: buf}
}

func (r *bufferPayloadReader) Len() uint64 { return uint64(len(r.buf)) }

func (r *bufferPayloadReader) Slice(offset, length uint64) ([]byte, error) {
	end := offset + length
	if end < offset || end > uint64(len(r.buf)) {
		return nil, newErr(OutOfBounds, fmt.Errorf("slice [%d:%d] exceeds payload length %d", offset, end, len(r.buf)))
	}
	return r.buf[offset:end:end], nil
}

func (r *bufferPayloadReader) Close() error { return nil }

// InMemoryThreshold is the default size below which a ZIP-extracted
// payload should be buffered in RAM rather than written to a temp file and
// mmap'd, per the selection policy in §4.1.
const InMemoryThreshold = 64 << 20 // 64 MiB

func newErrOrNil(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return newErr(kind, err)
}
