package otaripper

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// OutputMapping is a writable memory region backing one partition's output
// file, pre-allocated to its exact final length (§4.4). The region's
// lifetime is scoped to Close, at which point the OS flushes dirty pages.
type OutputMapping struct {
	f    *os.File
	m    mmap.MMap
	path string
}

// CreateOutputMapping creates outPath with exclusive-create semantics,
// sizes it to length bytes, and memory-maps it read-write. An existing
// file at outPath is OutputExists, not silently overwritten — the teacher
// uses a plain os.Create, which truncates silently; the engine needs
// exclusive-create so a half-written prior run's leftovers are never
// mistaken for a fresh extraction target.
func CreateOutputMapping(outPath string, length uint64) (*OutputMapping, error) {
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, newErr(OutputExists, fmt.Errorf("%s already exists", outPath))
		}
		return nil, newErr(OutputIO, err)
	}

	if length > 0 {
		if err := f.Truncate(int64(length)); err != nil {
			f.Close()
			os.Remove(outPath)
			return nil, newErr(OutputIO, fmt.Errorf("truncate %s to %d bytes: %w", outPath, length, err))
		}
	}

	var m mmap.MMap
	if length > 0 {
		m, err = mmap.Map(f, mmap.RDWR, 0)
		if err != nil {
			f.Close()
			os.Remove(outPath)
			return nil, newErr(OutputIO, fmt.Errorf("mmap %s: %w", outPath, err))
		}
	}

	om := &OutputMapping{f: f, m: m, path: outPath}
	om.hintSequentialWriteHeavy()
	return om, nil
}

// Bytes returns the full writable region.
func (om *OutputMapping) Bytes() []byte { return om.m }

// SubRegion returns the writable view for one destination extent. The
// Extent Validator's disjointness proof is this call's only justification:
// callers must only ever request disjoint [start,end) ranges across
// concurrent workers, and SubRegion does not itself re-check disjointness
// against other live sub-regions — that would require locking on every
// hot-path write, defeating the point of the proof.
func (om *OutputMapping) SubRegion(startBlock, numBlocks uint64, blockSize uint32) ([]byte, error) {
	start := startBlock * uint64(blockSize)
	end := start + numBlocks*uint64(blockSize)
	if end > uint64(len(om.m)) {
		return nil, newErr(OutOfBounds, fmt.Errorf("sub-region [%d:%d) exceeds mapping length %d", start, end, len(om.m)))
	}
	return om.m[start:end:end], nil
}

// Close flushes and unmaps the region, then closes the file.
func (om *OutputMapping) Close() error {
	var firstErr error
	if om.m != nil {
		if err := om.m.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := om.m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := om.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return newErr(OutputIO, firstErr)
	}
	return nil
}

// OutputPathFor returns "<outDir>/<partitionName>.img" per §6.
func OutputPathFor(outDir, partitionName string) string {
	return filepath.Join(outDir, partitionName+".img")
}

// EnsureOutputDir creates dir if it doesn't already exist, reporting
// whether this call is the one that created it (needed by Transactional
// Cleanup: the directory is only removed on failure if the engine itself
// created it, per §3 lifecycles).
func EnsureOutputDir(dir string) (created bool, err error) {
	if _, statErr := os.Stat(dir); statErr == nil {
		return false, nil
	} else if !os.IsNotExist(statErr) {
		return false, newErr(OutputIO, statErr)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, newErr(OutputIO, err)
	}
	return true, nil
}

// hintSequentialWriteHeavy is a best-effort OS hint; its absence or
// failure is never an error (§4.4 — "on platforms that benefit"). The
// actual hint is applied in the platform-specific files below.
func (om *OutputMapping) hintSequentialWriteHeavy() {
	adviseSequential(om.f)
}
