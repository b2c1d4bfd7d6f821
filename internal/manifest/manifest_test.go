package manifest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := &Manifest{
		BlockSize:    4096,
		MinorVersion: 0,
		Partitions: []Partition{
			{
				Name: "boot",
				NewPartitionInfo: &PartitionInfo{
					Size: 65536,
					Hash: []byte{1, 2, 3, 4},
				},
				Operations: []Operation{
					{
						Type:          OpReplace,
						DataOffset:    0,
						DataLength:    65536,
						HasDataOffset: true,
						HasDataLength: true,
						DataSHA256:    []byte{5, 6, 7, 8},
						DstExtents:    []Extent{{StartBlock: 0, NumBlocks: 16}},
					},
				},
			},
		},
	}

	got, err := Decode(want.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOpTypeIncremental(t *testing.T) {
	cases := []struct {
		t    OpType
		want bool
	}{
		{OpReplace, false},
		{OpReplaceBZ, false},
		{OpReplaceXZ, false},
		{OpZero, false},
		{OpDiscard, false},
		{OpSourceCopy, true},
		{OpSourceBSDiff, true},
		{OpBrotliBSDiff, true},
		{OpPuffDiff, true},
		{OpZucchini, true},
	}
	for _, c := range cases {
		if got := c.t.Incremental(); got != c.want {
			t.Errorf("%s.Incremental() = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode([]byte{0xff}); err == nil {
		t.Fatal("expected error decoding truncated/invalid manifest")
	}
}
