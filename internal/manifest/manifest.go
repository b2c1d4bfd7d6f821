// Package manifest decodes the chromeos_update_engine.DeltaArchiveManifest
// protobuf carried in an Android OTA payload header.
//
// The teacher's update_metadata package wraps protoc-generated message
// types and calls proto.Unmarshal on them directly. Generated code for the
// full DeltaArchiveManifest schema is not available here, so this package
// decodes the same wire format by hand with protowire, the low-level
// package underneath google.golang.org/protobuf's generated code. Field
// numbers below are a best-effort reconstruction of the real schema (the
// core message shapes — Extent, InstallOperation, PartitionUpdate — are
// well known from the public AOSP proto); treat them as this engine's
// wire contract, not a guarantee of byte-for-byte compatibility with a
// specific producer.
package manifest

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// OpType mirrors InstallOperation.Type.
type OpType int32

const (
	OpReplace OpType = iota
	OpReplaceBZ
	OpSourceCopy
	OpSourceBSDiff
	OpReplaceXZ
	OpZero
	OpDiscard
	OpBrotliBSDiff
	OpPuffDiff
	OpZucchini
)

func (t OpType) String() string {
	switch t {
	case OpReplace:
		return "REPLACE"
	case OpReplaceBZ:
		return "REPLACE_BZ"
	case OpSourceCopy:
		return "SOURCE_COPY"
	case OpSourceBSDiff:
		return "SOURCE_BSDIFF"
	case OpReplaceXZ:
		return "REPLACE_XZ"
	case OpZero:
		return "ZERO"
	case OpDiscard:
		return "DISCARD"
	case OpBrotliBSDiff:
		return "BROTLI_BSDIFF"
	case OpPuffDiff:
		return "PUFFDIFF"
	case OpZucchini:
		return "ZUCCHINI"
	default:
		return fmt.Sprintf("OpType(%d)", int32(t))
	}
}

// Incremental reports whether t belongs to the delta-only operation family
// this engine refuses to apply.
func (t OpType) Incremental() bool {
	switch t {
	case OpSourceCopy, OpSourceBSDiff, OpBrotliBSDiff, OpPuffDiff, OpZucchini:
		return true
	default:
		return false
	}
}

// Extent is a (start_block, num_blocks) destination or source range.
type Extent struct {
	StartBlock uint64
	NumBlocks  uint64
}

// Operation is one InstallOperation entry.
type Operation struct {
	Type           OpType
	DataOffset     uint64
	DataLength     uint64
	DataSHA256     []byte
	SrcExtents     []Extent
	DstExtents     []Extent
	HasDataOffset  bool
	HasDataLength  bool
}

// PartitionInfo is new_partition_info: the declared final image size and hash.
type PartitionInfo struct {
	Size uint64
	Hash []byte
}

// Partition is one PartitionUpdate entry.
type Partition struct {
	Name            string
	Operations      []Operation
	NewPartitionInfo *PartitionInfo
}

// Manifest is the decoded DeltaArchiveManifest.
type Manifest struct {
	BlockSize    uint32
	MinorVersion uint32
	Partitions   []Partition
}

// field numbers for Manifest
const (
	fManifestBlockSize    = 1
	fManifestPartitions   = 2
	fManifestMinorVersion = 3
)

// field numbers for PartitionUpdate
const (
	fPartitionName       = 1
	fPartitionOps        = 2
	fPartitionNewInfo    = 3
)

// field numbers for PartitionInfo
const (
	fPartitionInfoSize = 1
	fPartitionInfoHash = 2
)

// field numbers for InstallOperation
const (
	fOpType       = 1
	fOpDataOffset = 2
	fOpDataLength = 3
	fOpSrcExtents = 4
	fOpSrcLength  = 5
	fOpDstExtents = 6
	fOpDstLength  = 7
	fOpDataSHA256 = 8
	fOpSrcSHA256  = 9
)

// field numbers for Extent
const (
	fExtentStartBlock = 1
	fExtentNumBlocks  = 2
)

// Decode parses a serialized DeltaArchiveManifest.
func Decode(b []byte) (*Manifest, error) {
	m := &Manifest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("manifest: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fManifestBlockSize:
			v, n, err := consumeVarint(b)
			if err != nil {
				return nil, fmt.Errorf("manifest.block_size: %w", err)
			}
			m.BlockSize = uint32(v)
			b = b[n:]
		case fManifestMinorVersion:
			v, n, err := consumeVarint(b)
			if err != nil {
				return nil, fmt.Errorf("manifest.minor_version: %w", err)
			}
			m.MinorVersion = uint32(v)
			b = b[n:]
		case fManifestPartitions:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return nil, fmt.Errorf("manifest.partitions: %w", err)
			}
			p, err := decodePartition(raw)
			if err != nil {
				return nil, err
			}
			m.Partitions = append(m.Partitions, p)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("manifest: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

func decodePartition(b []byte) (Partition, error) {
	var p Partition
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("partition: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fPartitionName:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return p, fmt.Errorf("partition.partition_name: %w", err)
			}
			p.Name = string(raw)
			b = b[n:]
		case fPartitionOps:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return p, fmt.Errorf("partition.operations: %w", err)
			}
			op, err := decodeOperation(raw)
			if err != nil {
				return p, fmt.Errorf("partition %q: %w", p.Name, err)
			}
			p.Operations = append(p.Operations, op)
			b = b[n:]
		case fPartitionNewInfo:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return p, fmt.Errorf("partition.new_partition_info: %w", err)
			}
			info, err := decodePartitionInfo(raw)
			if err != nil {
				return p, err
			}
			p.NewPartitionInfo = &info
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, fmt.Errorf("partition: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodePartitionInfo(b []byte) (PartitionInfo, error) {
	var info PartitionInfo
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return info, fmt.Errorf("partition_info: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fPartitionInfoSize:
			v, n, err := consumeVarint(b)
			if err != nil {
				return info, fmt.Errorf("partition_info.size: %w", err)
			}
			info.Size = v
			b = b[n:]
		case fPartitionInfoHash:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return info, fmt.Errorf("partition_info.hash: %w", err)
			}
			info.Hash = append([]byte(nil), raw...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return info, fmt.Errorf("partition_info: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return info, nil
}

func decodeOperation(b []byte) (Operation, error) {
	var op Operation
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return op, fmt.Errorf("operation: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fOpType:
			v, n, err := consumeVarint(b)
			if err != nil {
				return op, fmt.Errorf("operation.type: %w", err)
			}
			op.Type = OpType(v)
			b = b[n:]
		case fOpDataOffset:
			v, n, err := consumeVarint(b)
			if err != nil {
				return op, fmt.Errorf("operation.data_offset: %w", err)
			}
			op.DataOffset = v
			op.HasDataOffset = true
			b = b[n:]
		case fOpDataLength:
			v, n, err := consumeVarint(b)
			if err != nil {
				return op, fmt.Errorf("operation.data_length: %w", err)
			}
			op.DataLength = v
			op.HasDataLength = true
			b = b[n:]
		case fOpSrcExtents:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return op, fmt.Errorf("operation.src_extents: %w", err)
			}
			ext, err := decodeExtent(raw)
			if err != nil {
				return op, err
			}
			op.SrcExtents = append(op.SrcExtents, ext)
			b = b[n:]
		case fOpDstExtents:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return op, fmt.Errorf("operation.dst_extents: %w", err)
			}
			ext, err := decodeExtent(raw)
			if err != nil {
				return op, err
			}
			op.DstExtents = append(op.DstExtents, ext)
			b = b[n:]
		case fOpDataSHA256:
			raw, n, err := consumeBytes(b)
			if err != nil {
				return op, fmt.Errorf("operation.data_sha256_hash: %w", err)
			}
			op.DataSHA256 = append([]byte(nil), raw...)
			b = b[n:]
		case fOpSrcLength, fOpDstLength, fOpSrcSHA256:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return op, fmt.Errorf("operation: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return op, fmt.Errorf("operation: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return op, nil
}

func decodeExtent(b []byte) (Extent, error) {
	var e Extent
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("extent: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fExtentStartBlock:
			v, n, err := consumeVarint(b)
			if err != nil {
				return e, fmt.Errorf("extent.start_block: %w", err)
			}
			e.StartBlock = v
			b = b[n:]
		case fExtentNumBlocks:
			v, n, err := consumeVarint(b)
			if err != nil {
				return e, fmt.Errorf("extent.num_blocks: %w", err)
			}
			e.NumBlocks = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("extent: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

func consumeVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}
