package manifest

import "google.golang.org/protobuf/encoding/protowire"

// Encode serializes m back to wire format. Only used by tests that need a
// synthetic payload; the engine itself is decode-only.
func (m *Manifest) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fManifestBlockSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.BlockSize))
	b = protowire.AppendTag(b, fManifestMinorVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.MinorVersion))
	for _, p := range m.Partitions {
		b = protowire.AppendTag(b, fManifestPartitions, protowire.BytesType)
		b = protowire.AppendBytes(b, p.encode())
	}
	return b
}

func (p *Partition) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fPartitionName, protowire.BytesType)
	b = protowire.AppendString(b, p.Name)
	for _, op := range p.Operations {
		b = protowire.AppendTag(b, fPartitionOps, protowire.BytesType)
		b = protowire.AppendBytes(b, op.encode())
	}
	if p.NewPartitionInfo != nil {
		b = protowire.AppendTag(b, fPartitionNewInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, p.NewPartitionInfo.encode())
	}
	return b
}

func (info *PartitionInfo) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fPartitionInfoSize, protowire.VarintType)
	b = protowire.AppendVarint(b, info.Size)
	if len(info.Hash) > 0 {
		b = protowire.AppendTag(b, fPartitionInfoHash, protowire.BytesType)
		b = protowire.AppendBytes(b, info.Hash)
	}
	return b
}

func (op *Operation) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fOpType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(op.Type))
	if op.HasDataOffset {
		b = protowire.AppendTag(b, fOpDataOffset, protowire.VarintType)
		b = protowire.AppendVarint(b, op.DataOffset)
	}
	if op.HasDataLength {
		b = protowire.AppendTag(b, fOpDataLength, protowire.VarintType)
		b = protowire.AppendVarint(b, op.DataLength)
	}
	for _, e := range op.SrcExtents {
		b = protowire.AppendTag(b, fOpSrcExtents, protowire.BytesType)
		b = protowire.AppendBytes(b, e.encode())
	}
	for _, e := range op.DstExtents {
		b = protowire.AppendTag(b, fOpDstExtents, protowire.BytesType)
		b = protowire.AppendBytes(b, e.encode())
	}
	if len(op.DataSHA256) > 0 {
		b = protowire.AppendTag(b, fOpDataSHA256, protowire.BytesType)
		b = protowire.AppendBytes(b, op.DataSHA256)
	}
	return b
}

func (e *Extent) encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, fExtentStartBlock, protowire.VarintType)
	b = protowire.AppendVarint(b, e.StartBlock)
	b = protowire.AppendTag(b, fExtentNumBlocks, protowire.VarintType)
	b = protowire.AppendVarint(b, e.NumBlocks)
	return b
}
