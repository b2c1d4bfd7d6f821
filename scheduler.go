// The Worker Scheduler fans a partition's operations out across a bounded
// pool of goroutines (§4.8). The teacher already depends on
// github.com/panjf2000/ants/v2 but never wires a pool up to its extraction
// loop (doExtractBootFromPayload runs every operation on the calling
// goroutine); this is that wiring, generalized across whole partitions
// rather than a single hardcoded boot.img. golang.org/x/sync/errgroup
// supplies the join barrier and first-error propagation ants itself
// doesn't provide.
package otaripper

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"github.com/syedinsaf/otaripper/internal/manifest"
	"github.com/syedinsaf/otaripper/internal/simd"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called after each operation completes, with the number
// of output bytes it produced. Implementations must be safe for concurrent
// calls from multiple worker goroutines.
type ProgressFunc func(n uint64)

// ExtractPartition applies every operation in plan against om, reading
// source bytes from r's data region at dataRegionStart. It returns the
// partition's final-image SHA-256 when level requires one (computed
// inline, without a second read, when the partition qualifies for the
// single-operation fast path; otherwise by hashing the finished mapping).
// workerCount <= 1 or an operation count at or below workerCount takes the
// serial fast path — spinning up a pool for one or two operations would
// cost more than it saves.
func ExtractPartition(ctx context.Context, r PayloadReader, dataRegionStart uint64, plan PartitionPlan, om *OutputMapping, level VerifyLevel, workerCount int, onProgress ProgressFunc) ([]byte, error) {
	if workerCount < 1 {
		workerCount = 1
	}

	var ih *incrementalHash
	if qualifiesForInlineHash(plan) {
		ih = newIncrementalHash()
	}

	process := func(i int) error {
		if err := ctx.Err(); err != nil {
			return newOpErr(Cancelled, plan.Name, i, err)
		}
		op := plan.Operations[i]
		n, err := writeOperation(r, dataRegionStart, plan.Name, i, op, om, plan.BlockSize, level, ih)
		if err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(n)
		}
		return nil
	}

	n := len(plan.Operations)
	if workerCount == 1 || n <= workerCount {
		for i := 0; i < n; i++ {
			if err := process(i); err != nil {
				return nil, err
			}
		}
	} else if err := runPooled(ctx, n, workerCount, process); err != nil {
		return nil, err
	}

	if ih != nil {
		return ih.Sum(), nil
	}
	if level != VerifyOff {
		sum := sha256.Sum256(om.Bytes())
		return sum[:], nil
	}
	return nil, nil
}

// runPooled submits n independent tasks (indices [0,n)) to a bounded ants
// pool of size workerCount, using an errgroup as the join barrier: it waits
// for every task and returns the first error, cancelling the shared context
// so in-flight tasks can observe cancellation and stop early.
func runPooled(ctx context.Context, n, workerCount int, fn func(int) error) error {
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return newErr(OutputIO, fmt.Errorf("create worker pool: %w", err))
	}
	defer pool.Release()

	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		done := make(chan struct{})
		eg.Go(func() error {
			var taskErr error
			submitErr := pool.Submit(func() {
				defer close(done)
				if egCtx.Err() != nil {
					taskErr = newErr(Cancelled, egCtx.Err())
					return
				}
				taskErr = fn(i)
			})
			if submitErr != nil {
				close(done)
				return newErr(OutputIO, fmt.Errorf("submit worker task: %w", submitErr))
			}
			<-done
			return taskErr
		})
	}
	return eg.Wait()
}

// writeOperation produces one operation's output bytes and writes them
// into om's disjoint sub-regions for op's destination extents, in extent
// order. Multiple destination extents are filled from one contiguous
// decompressed buffer, matching how the format's producer lays out a
// single operation's output across a partition's free blocks.
func writeOperation(r PayloadReader, dataRegionStart uint64, partition string, opIndex int, op manifest.Operation, om *OutputMapping, blockSize uint32, level VerifyLevel, ih *incrementalHash) (uint64, error) {
	var totalBlocks uint64
	for _, e := range op.DstExtents {
		totalBlocks += e.NumBlocks
	}
	totalLen := totalBlocks * uint64(blockSize)

	var src []byte
	if op.HasDataLength && op.DataLength > 0 {
		var err error
		src, err = r.Slice(dataRegionStart+op.DataOffset, op.DataLength)
		if err != nil {
			return 0, err
		}
	}

	if err := VerifyOperation(level, partition, opIndex, op, src); err != nil {
		return 0, err
	}

	buf := make([]byte, totalLen)
	if err := decompressInto(buf, op, src); err != nil {
		return 0, classifyDecompressErr(partition, opIndex, err)
	}

	var offset uint64
	for _, e := range op.DstExtents {
		region, err := om.SubRegion(e.StartBlock, e.NumBlocks, blockSize)
		if err != nil {
			return 0, err
		}
		n := e.NumBlocks * uint64(blockSize)
		simd.Copy(region, buf[offset:offset+n])
		offset += n
	}

	if ih != nil {
		ih.Write(buf)
	}

	return totalLen, nil
}

func classifyDecompressErr(partition string, opIndex int, err error) error {
	if errors.Is(err, errDecompressLen) {
		return newOpErr(DecompressLengthMismatch, partition, opIndex, err)
	}
	return newOpErr(DecompressError, partition, opIndex, err)
}
