package otaripper

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/syedinsaf/otaripper/internal/manifest"
	"github.com/syedinsaf/otaripper/internal/simd"
)

// VerifyLevel selects how much of §4.6's three-layer model runs.
type VerifyLevel int

const (
	// VerifyOff disables L2/L3. L1 (manifest structural checks) always
	// runs regardless of this setting — it's not optional.
	VerifyOff VerifyLevel = iota
	VerifyNormal
	VerifyStrict
)

// VerifyOperation is L2: if op declares a data hash, hash src (the raw
// payload-side bytes, pre-decompression per the Open Question in §9) and
// compare. A no-op when op has no declared hash and level isn't strict.
func VerifyOperation(level VerifyLevel, partition string, opIndex int, op manifest.Operation, src []byte) error {
	if level == VerifyOff {
		return nil
	}
	if len(op.DataSHA256) == 0 {
		if level == VerifyStrict && dataBearing(op.Type) {
			return newOpErr(StrictHashMissing, partition, opIndex, fmt.Errorf("strict mode requires data_sha256_hash for %s", op.Type))
		}
		return nil
	}
	sum := sha256.Sum256(src)
	if !bytes.Equal(sum[:], op.DataSHA256) {
		return newOpErr(HashMismatch, partition, opIndex,
			fmt.Errorf("operation hash mismatch: have %x, want %x", sum, op.DataSHA256))
	}
	return nil
}

func dataBearing(t manifest.OpType) bool {
	switch t {
	case manifest.OpReplace, manifest.OpReplaceBZ, manifest.OpReplaceXZ:
		return true
	default:
		return false
	}
}

// VerifyPartitionImage is L3: compare the full output image's SHA-256
// against the manifest's declared hash, when present.
func VerifyPartitionImage(level VerifyLevel, partition string, expectedHash []byte, image []byte) error {
	if level == VerifyOff {
		return nil
	}
	if len(expectedHash) == 0 {
		if level == VerifyStrict {
			return newPartErr(StrictHashMissing, partition, fmt.Errorf("strict mode requires a new_partition_info hash"))
		}
		return nil
	}
	sum := sha256.Sum256(image)
	if !bytes.Equal(sum[:], expectedHash) {
		return newPartErr(HashMismatch, partition,
			fmt.Errorf("output image hash mismatch: have %x, want %x", sum, expectedHash))
	}
	return nil
}

// SanityCheckAllZero fails with AllZeroOutput if image is entirely zero.
// Callers should skip this for partitions they've determined are
// legitimately expected to be all-zero (§4.6).
func SanityCheckAllZero(partition string, image []byte) error {
	if simd.IsAllZero(image) {
		return newPartErr(AllZeroOutput, partition, fmt.Errorf("output image is entirely zero bytes"))
	}
	return nil
}

// qualifiesForInlineHash reports whether plan's operation set is exactly
// one REPLACE op covering one contiguous extent equal to the whole
// partition — the only shape §4.6 permits computing L3 as a by-product of
// the write rather than a second full read of the finalized output.
func qualifiesForInlineHash(plan PartitionPlan) bool {
	if len(plan.Operations) != 1 {
		return false
	}
	op := plan.Operations[0]
	if op.Type != manifest.OpReplace || len(op.DstExtents) != 1 {
		return false
	}
	e := op.DstExtents[0]
	return e.StartBlock == 0 && e.NumBlocks*uint64(plan.BlockSize) == plan.TotalLength
}

// incrementalHash wraps hash.Hash for the inline-hash fast path: the sole
// worker writing a qualifying partition's sole operation feeds the same
// bytes it writes to the output mapping through this hasher, so L3 is
// computed without a second linear scan of the finalized image.
type incrementalHash struct {
	h hash.Hash
}

func newIncrementalHash() *incrementalHash {
	return &incrementalHash{h: sha256.New()}
}

func (ih *incrementalHash) Write(p []byte) {
	ih.h.Write(p)
}

func (ih *incrementalHash) Sum() []byte {
	return ih.h.Sum(nil)
}
