package otaripper_test

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
	"time"

	otaripper "github.com/syedinsaf/otaripper"
	"github.com/syedinsaf/otaripper/internal/manifest"
	"github.com/syedinsaf/otaripper/internal/testutil"
)

func writeSyntheticPayload(t *testing.T, dir string) (string, []byte) {
	t.Helper()
	const blockSize = 4096

	bootData := make([]byte, blockSize*2)
	for i := range bootData {
		bootData[i] = byte(i)
	}
	bootSum := sha256.Sum256(bootData)
	bootImageSum := sha256.Sum256(bootData)

	m := &manifest.Manifest{
		BlockSize: blockSize,
		Partitions: []manifest.Partition{
			{
				Name: "boot",
				Operations: []manifest.Operation{
					{
						Type:          manifest.OpReplace,
						DataOffset:    0,
						DataLength:    uint64(len(bootData)),
						HasDataOffset: true,
						HasDataLength: true,
						DataSHA256:    bootSum[:],
						DstExtents:    []manifest.Extent{{StartBlock: 0, NumBlocks: 2}},
					},
				},
				NewPartitionInfo: &manifest.PartitionInfo{
					Size: uint64(len(bootData)),
					Hash: bootImageSum[:],
				},
			},
			{
				Name: "vendor",
				Operations: []manifest.Operation{
					{
						Type:       manifest.OpZero,
						DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 1}},
					},
				},
			},
		},
	}

	payload := testutil.BuildPayload(m, bootData)
	path := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatal(err)
	}
	return path, bootData
}

func TestExtractEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path, bootData := writeSyntheticPayload(t, dir)
	outDir := filepath.Join(dir, "out")

	var progressEvents []string
	var doneEvents []string
	summary, err := otaripper.Extract(context.Background(), path, otaripper.Config{
		OutDir:  outDir,
		Verify:  otaripper.VerifyNormal,
		Sanity:  true,
		Threads: 4,
	}, otaripper.Sinks{
		OnProgress: func(partition string, n uint64) {
			progressEvents = append(progressEvents, partition)
		},
		OnPartitionDone: func(partition string, hash []byte, _ time.Duration) {
			doneEvents = append(doneEvents, partition)
		},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(summary.Partitions) != 2 {
		t.Fatalf("got %d partitions, want 2", len(summary.Partitions))
	}
	if len(progressEvents) == 0 {
		t.Fatal("expected at least one progress event")
	}
	if len(doneEvents) != 2 {
		t.Fatalf("expected 2 OnPartitionDone events, got %d", len(doneEvents))
	}

	bootImg, err := os.ReadFile(filepath.Join(outDir, "boot.img"))
	if err != nil {
		t.Fatal(err)
	}
	if string(bootImg) != string(bootData) {
		t.Fatal("boot.img content mismatch")
	}

	vendorImg, err := os.ReadFile(filepath.Join(outDir, "vendor.img"))
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range vendorImg {
		if b != 0 {
			t.Fatal("vendor.img should be all zero from the ZERO operation")
		}
	}
}

func TestExtractSanityRejectsAllZeroPartition(t *testing.T) {
	dir := t.TempDir()
	const blockSize = 4096
	m := &manifest.Manifest{
		BlockSize: blockSize,
		Partitions: []manifest.Partition{
			{
				Name: "cache",
				Operations: []manifest.Operation{
					{Type: manifest.OpZero, DstExtents: []manifest.Extent{{StartBlock: 0, NumBlocks: 1}}},
				},
			},
		},
	}
	payload := testutil.BuildPayload(m, nil)
	path := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	_, err := otaripper.Extract(context.Background(), path, otaripper.Config{
		OutDir: outDir,
		Sanity: true,
	}, otaripper.Sinks{})
	oerr, ok := err.(*otaripper.Error)
	if !ok || oerr.Kind != otaripper.AllZeroOutput {
		t.Fatalf("got %v, want AllZeroOutput", err)
	}

	if _, statErr := os.Stat(outDir); !os.IsNotExist(statErr) {
		t.Fatal("output directory created by this run should be rolled back on failure")
	}
}

func TestExtractSelectPartitionsSubset(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeSyntheticPayload(t, dir)
	outDir := filepath.Join(dir, "out")

	summary, err := otaripper.Extract(context.Background(), path, otaripper.Config{
		OutDir:   outDir,
		Selected: []string{"vendor"},
	}, otaripper.Sinks{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(summary.Partitions) != 1 || summary.Partitions[0].Name != "vendor" {
		t.Fatalf("got %+v, want only vendor", summary.Partitions)
	}
	if _, err := os.Stat(filepath.Join(outDir, "boot.img")); !os.IsNotExist(err) {
		t.Fatal("boot.img should not have been created when only vendor was selected")
	}
}

func TestManifestInfoOnlyDoesNotCreateOutput(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeSyntheticPayload(t, dir)

	summary, err := otaripper.Manifest(path, nil)
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(summary.Partitions) != 2 {
		t.Fatalf("got %d partitions, want 2", len(summary.Partitions))
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Fatal("Manifest must not create any output directory")
	}
}

func TestExtractRejectsExistingOutputFile(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeSyntheticPayload(t, dir)
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "boot.img"), []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := otaripper.Extract(context.Background(), path, otaripper.Config{OutDir: outDir}, otaripper.Sinks{})
	oerr, ok := err.(*otaripper.Error)
	if !ok || oerr.Kind != otaripper.OutputExists {
		t.Fatalf("got %v, want OutputExists", err)
	}
}
