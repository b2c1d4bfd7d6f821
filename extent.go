package otaripper

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/syedinsaf/otaripper/internal/manifest"
)

// PartitionPlan is the validated, derived plan for writing one partition:
// the operation set in manifest order, the total output length, and proof
// that destination extents are pairwise disjoint and in bounds (§3).
type PartitionPlan struct {
	Name       string
	BlockSize  uint32
	Operations []manifest.Operation
	// TotalLength is the max over all dst extents of
	// (start_block+num_blocks)*block_size.
	TotalLength uint64
	// ExpectedHash is the manifest's declared final-image SHA-256, if any.
	ExpectedHash []byte
}

// ValidateExtents proves that, for every selected partition, destination
// extents across all of that partition's operations are pairwise disjoint
// and within partition bounds, and returns the derived PartitionPlan for
// each. It fails before any output file is created or any byte is read
// from the data region (§4.3, property: Disjointness).
func ValidateExtents(blockSize uint32, partitions []manifest.Partition) ([]PartitionPlan, error) {
	if blockSize == 0 || bits.OnesCount32(blockSize) != 1 {
		return nil, newErr(BadBlockSize, fmt.Errorf("block_size %d is not a positive power of two", blockSize))
	}
	if blockSize > 1<<20 {
		return nil, newErr(BadBlockSize, fmt.Errorf("block_size %d exceeds 1 MiB", blockSize))
	}

	plans := make([]PartitionPlan, 0, len(partitions))
	for _, p := range partitions {
		plan, err := validatePartitionExtents(blockSize, p)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

type extentRef struct {
	start, end uint64 // block indices, end exclusive
	opIndex    int
}

func validatePartitionExtents(blockSize uint32, p manifest.Partition) (PartitionPlan, error) {
	var refs []extentRef
	var maxBlock uint64

	for i, op := range p.Operations {
		if len(op.DstExtents) == 0 {
			return PartitionPlan{}, newOpErr(OutOfBounds, p.Name, i, fmt.Errorf("operation has no destination extents"))
		}
		for _, e := range op.DstExtents {
			if e.NumBlocks == 0 {
				return PartitionPlan{}, newOpErr(OutOfBounds, p.Name, i, fmt.Errorf("zero-length extent"))
			}
			end := e.StartBlock + e.NumBlocks
			if end < e.StartBlock {
				return PartitionPlan{}, newOpErr(OutOfBounds, p.Name, i, fmt.Errorf("extent overflows: start %d num_blocks %d", e.StartBlock, e.NumBlocks))
			}
			refs = append(refs, extentRef{start: e.StartBlock, end: end, opIndex: i})
			if end > maxBlock {
				maxBlock = end
			}
		}
	}

	// Tight upper bound: the declared size, if present, must be consistent
	// with (and is preferred over) the extent-derived bound, since the
	// manifest's own declared length is authoritative when given.
	totalBlocks := maxBlock
	if p.NewPartitionInfo != nil && p.NewPartitionInfo.Size > 0 {
		declaredBlocks := (p.NewPartitionInfo.Size + uint64(blockSize) - 1) / uint64(blockSize)
		if declaredBlocks < maxBlock {
			return PartitionPlan{}, newPartErr(OutOfBounds, p.Name,
				fmt.Errorf("declared size %d (%d blocks) is smaller than the highest extent bound %d blocks", p.NewPartitionInfo.Size, declaredBlocks, maxBlock))
		}
		totalBlocks = declaredBlocks
	}

	for _, r := range refs {
		if r.end > totalBlocks {
			return PartitionPlan{}, newOpErr(OutOfBounds, p.Name, r.opIndex,
				fmt.Errorf("extent [%d:%d) exceeds partition bound %d blocks", r.start, r.end, totalBlocks))
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].start < refs[j].start })
	for i := 1; i < len(refs); i++ {
		if refs[i].start < refs[i-1].end {
			return PartitionPlan{}, newPartErr(OverlappingExtents, p.Name,
				fmt.Errorf("extent [%d:%d) (op %d) overlaps extent [%d:%d) (op %d)",
					refs[i].start, refs[i].end, refs[i].opIndex,
					refs[i-1].start, refs[i-1].end, refs[i-1].opIndex))
		}
	}

	// Coverage: when the manifest declares a size, the extents must union
	// to exactly [0, totalBlocks) — no gap left for mmap zero-fill to
	// silently paper over (§8).
	if p.NewPartitionInfo != nil && p.NewPartitionInfo.Size > 0 {
		if err := checkCoverage(p.Name, refs, totalBlocks); err != nil {
			return PartitionPlan{}, err
		}
	}

	var expectedHash []byte
	if p.NewPartitionInfo != nil {
		expectedHash = p.NewPartitionInfo.Hash
	}

	return PartitionPlan{
		Name:         p.Name,
		BlockSize:    blockSize,
		Operations:   p.Operations,
		TotalLength:  totalBlocks * uint64(blockSize),
		ExpectedHash: expectedHash,
	}, nil
}

// checkCoverage fails if refs (already sorted by start) leave any gap
// within [0, totalBlocks): a leading gap before the first extent, a gap
// between consecutive extents, or a trailing gap after the last extent.
// refs is known disjoint by this point, so a non-overlapping,
// non-contiguous pair is necessarily a gap.
func checkCoverage(name string, refs []extentRef, totalBlocks uint64) error {
	if len(refs) == 0 {
		return newPartErr(OutOfBounds, name,
			fmt.Errorf("declared size implies %d blocks but no extents were written", totalBlocks))
	}
	if refs[0].start != 0 {
		return newPartErr(OutOfBounds, name,
			fmt.Errorf("coverage gap [0:%d) before the first extent", refs[0].start))
	}
	for i := 1; i < len(refs); i++ {
		if refs[i].start != refs[i-1].end {
			return newPartErr(OutOfBounds, name,
				fmt.Errorf("coverage gap [%d:%d) between extents", refs[i-1].end, refs[i].start))
		}
	}
	if last := refs[len(refs)-1].end; last != totalBlocks {
		return newPartErr(OutOfBounds, name,
			fmt.Errorf("coverage gap [%d:%d) after the last extent", last, totalBlocks))
	}
	return nil
}
