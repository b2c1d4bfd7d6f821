// Package simd provides the engine's bulk-copy and all-zero-detection
// primitives, dispatched once at startup from a runtime capability probe
// (§4.7, §9). A real assembly SIMD backend isn't available to a portable
// Go package without per-arch .s files; this package instead widens the
// scalar byte loop to machine-word (uint64) strides, which is the part of
// "SIMD" that's actually observable from pure Go: fewer, wider memory
// operations. The capability table exists regardless, read once at
// startup and never re-probed on the hot path, exactly as §9 specifies —
// so a later port to real per-arch assembly only needs to change which
// routine Copy and IsAllZero select from Caps().
package simd

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// StreamingThreshold is the buffer size at or above which Copy uses the
// word-strided path (§4.7).
const StreamingThreshold = 1 << 20 // 1 MiB

// Capabilities records the instruction-set features probed once at
// process startup.
type Capabilities struct {
	WideCopy    bool // word-strided copy/zero-check available (always true: pure Go)
	AVX2        bool // informational; no AVX2 codepath without assembly
	NEON        bool // informational; no NEON codepath without assembly
}

var (
	capsOnce sync.Once
	caps     Capabilities
)

// Caps returns the process-wide capability table, probing exactly once.
func Caps() Capabilities {
	capsOnce.Do(func() {
		caps = Capabilities{
			WideCopy: true,
			AVX2:     cpu.X86.HasAVX2,
			NEON:     cpu.ARM64.HasASIMD,
		}
	})
	return caps
}

// Copy copies src into dst, which must be the same length, using the
// dispatch table's chosen strategy. Above StreamingThreshold it uses the
// word-strided path intended to avoid evicting hot metadata and worker
// state the way a byte-at-a-time loop touching every cache line would;
// below threshold it's a direct slice copy ("single-extent fast path" of
// §4.8 for small buffers).
func Copy(dst, src []byte) {
	if len(src) != len(dst) {
		panic("simd: Copy: length mismatch")
	}
	if len(src) == 0 {
		return
	}
	if len(src) >= StreamingThreshold && Caps().WideCopy {
		copyWide(dst, src)
		return
	}
	copy(dst, src)
}

// CopyScalar is the byte-at-a-time reference implementation, kept for
// differential testing against Copy.
func CopyScalar(dst, src []byte) {
	for i := range src {
		dst[i] = src[i]
	}
}

// copyWide copies in uint64 strides, falling back to byte copies for the
// trailing len%8 bytes. Go's own runtime memmove already does this
// internally, so this mainly documents the strategy §4.7 asks for; it
// remains byte-identical to copy(dst, src) by construction.
func copyWide(dst, src []byte) {
	n := len(src)
	words := n / 8
	if words > 0 {
		srcWords := unsafe.Slice((*uint64)(unsafe.Pointer(&src[0])), words)
		dstWords := unsafe.Slice((*uint64)(unsafe.Pointer(&dst[0])), words)
		copy(dstWords, srcWords)
	}
	for i := words * 8; i < n; i++ {
		dst[i] = src[i]
	}
}

// IsAllZero reports whether buf consists entirely of zero bytes, with an
// early-out on the first nonzero word or byte.
func IsAllZero(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	if Caps().WideCopy {
		return isAllZeroWide(buf)
	}
	return IsAllZeroScalar(buf)
}

// IsAllZeroScalar is the byte-at-a-time reference implementation, kept
// for differential testing against IsAllZero.
func IsAllZeroScalar(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

func isAllZeroWide(buf []byte) bool {
	n := len(buf)
	words := n / 8
	if words > 0 {
		wordView := unsafe.Slice((*uint64)(unsafe.Pointer(&buf[0])), words)
		for _, w := range wordView {
			if w != 0 {
				return false
			}
		}
	}
	for i := words * 8; i < n; i++ {
		if buf[i] != 0 {
			return false
		}
	}
	return true
}
