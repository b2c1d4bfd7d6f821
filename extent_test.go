package otaripper_test

import (
	"testing"

	otaripper "github.com/syedinsaf/otaripper"
	"github.com/syedinsaf/otaripper/internal/manifest"
)

func TestValidateExtentsDisjoint(t *testing.T) {
	parts := []manifest.Partition{{
		Name: "system",
		Operations: []manifest.Operation{
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 4}}},
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 4, NumBlocks: 4}}},
		},
	}}

	plans, err := otaripper.ValidateExtents(4096, parts)
	if err != nil {
		t.Fatalf("ValidateExtents: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans, want 1", len(plans))
	}
	if want := uint64(8 * 4096); plans[0].TotalLength != want {
		t.Errorf("TotalLength = %d, want %d", plans[0].TotalLength, want)
	}
}

func TestValidateExtentsOverlap(t *testing.T) {
	parts := []manifest.Partition{{
		Name: "system",
		Operations: []manifest.Operation{
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 12}}},
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 10, NumBlocks: 4}}},
		},
	}}

	_, err := otaripper.ValidateExtents(4096, parts)
	oerr, ok := err.(*otaripper.Error)
	if !ok || oerr.Kind != otaripper.OverlappingExtents {
		t.Fatalf("got %v, want OverlappingExtents", err)
	}
}

func TestValidateExtentsBadBlockSize(t *testing.T) {
	parts := []manifest.Partition{{Name: "boot"}}
	for _, bs := range []uint32{0, 3, 4097} {
		_, err := otaripper.ValidateExtents(bs, parts)
		oerr, ok := err.(*otaripper.Error)
		if !ok || oerr.Kind != otaripper.BadBlockSize {
			t.Fatalf("block_size %d: got %v, want BadBlockSize", bs, err)
		}
	}
}

func TestValidateExtentsCoverageGap(t *testing.T) {
	// Declares 16 blocks but only extent (0,8) is ever written; the
	// trailing 8 blocks would otherwise be silently left as mmap zero-fill.
	parts := []manifest.Partition{{
		Name: "system",
		NewPartitionInfo: &manifest.PartitionInfo{
			Size: 16 * 4096,
		},
		Operations: []manifest.Operation{
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 8}}},
		},
	}}
	_, err := otaripper.ValidateExtents(4096, parts)
	oerr, ok := err.(*otaripper.Error)
	if !ok || oerr.Kind != otaripper.OutOfBounds {
		t.Fatalf("got %v, want OutOfBounds", err)
	}
}

func TestValidateExtentsCoverageGapBetweenExtents(t *testing.T) {
	parts := []manifest.Partition{{
		Name: "vendor",
		NewPartitionInfo: &manifest.PartitionInfo{
			Size: 8 * 4096,
		},
		Operations: []manifest.Operation{
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 2}}},
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 4, NumBlocks: 4}}},
		},
	}}
	_, err := otaripper.ValidateExtents(4096, parts)
	oerr, ok := err.(*otaripper.Error)
	if !ok || oerr.Kind != otaripper.OutOfBounds {
		t.Fatalf("got %v, want OutOfBounds", err)
	}
}

func TestValidateExtentsFullCoveragePasses(t *testing.T) {
	parts := []manifest.Partition{{
		Name: "boot",
		NewPartitionInfo: &manifest.PartitionInfo{
			Size: 8 * 4096,
		},
		Operations: []manifest.Operation{
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 4}}},
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 4, NumBlocks: 4}}},
		},
	}}
	plans, err := otaripper.ValidateExtents(4096, parts)
	if err != nil {
		t.Fatalf("ValidateExtents: %v", err)
	}
	if plans[0].TotalLength != 8*4096 {
		t.Fatalf("TotalLength = %d, want %d", plans[0].TotalLength, 8*4096)
	}
}

func TestValidateExtentsOutOfBounds(t *testing.T) {
	parts := []manifest.Partition{{
		Name: "system",
		NewPartitionInfo: &manifest.PartitionInfo{
			Size: 4 * 4096,
		},
		Operations: []manifest.Operation{
			{Type: manifest.OpReplace, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 8}}},
		},
	}}
	_, err := otaripper.ValidateExtents(4096, parts)
	oerr, ok := err.(*otaripper.Error)
	if !ok || oerr.Kind != otaripper.OutOfBounds {
		t.Fatalf("got %v, want OutOfBounds", err)
	}
}
