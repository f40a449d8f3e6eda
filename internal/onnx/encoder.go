package onnx

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal serialises a model in the ONNX protobuf wire format.
// Zero-valued scalar fields are omitted.
func Marshal(m *ModelProto) []byte {
	var b []byte
	if m.IRVersion != 0 {
		b = appendVarint(b, 1, m.IRVersion)
	}
	b = appendString(b, 2, m.ProducerName)
	b = appendString(b, 3, m.ProducerVersion)
	b = appendString(b, 4, m.Domain)
	if m.ModelVersion != 0 {
		b = appendVarint(b, 5, m.ModelVersion)
	}
	b = appendString(b, 6, m.DocString)
	if m.Graph != nil {
		b = appendMessage(b, 7, marshalGraph(m.Graph))
	}
	for _, opset := range m.OpsetImport {
		var sub []byte
		sub = appendString(sub, 1, opset.Domain)
		sub = appendVarint(sub, 2, opset.Version)
		b = appendMessage(b, 8, sub)
	}
	for _, entry := range m.MetadataProps {
		var sub []byte
		sub = appendString(sub, 1, entry.Key)
		sub = appendString(sub, 2, entry.Value)
		b = appendMessage(b, 14, sub)
	}
	return b
}

// WriteFile serialises a model to path.
func WriteFile(path string, m *ModelProto) error {
	if err := os.WriteFile(path, Marshal(m), 0o600); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

func marshalGraph(g *GraphProto) []byte {
	var b []byte
	for i := range g.Nodes {
		b = appendMessage(b, 1, marshalNode(&g.Nodes[i]))
	}
	b = appendString(b, 2, g.Name)
	for i := range g.Initializers {
		b = appendMessage(b, 5, marshalTensor(&g.Initializers[i]))
	}
	b = appendString(b, 10, g.DocString)
	for i := range g.Inputs {
		b = appendMessage(b, 11, marshalValueInfo(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		b = appendMessage(b, 12, marshalValueInfo(&g.Outputs[i]))
	}
	for i := range g.ValueInfo {
		b = appendMessage(b, 13, marshalValueInfo(&g.ValueInfo[i]))
	}
	return b
}

func marshalNode(n *NodeProto) []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = appendRepeatedString(b, 1, in)
	}
	for _, out := range n.Outputs {
		b = appendRepeatedString(b, 2, out)
	}
	b = appendString(b, 3, n.Name)
	b = appendString(b, 4, n.OpType)
	for i := range n.Attributes {
		b = appendMessage(b, 5, marshalAttribute(&n.Attributes[i]))
	}
	b = appendString(b, 6, n.DocString)
	b = appendString(b, 7, n.Domain)
	return b
}

func marshalAttribute(a *AttributeProto) []byte {
	var b []byte
	b = appendString(b, 1, a.Name)
	switch a.Type {
	case AttributeProtoFloat:
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.F))
	case AttributeProtoInt:
		b = appendVarint(b, 3, a.I)
	case AttributeProtoString:
		b = appendRepeatedBytes(b, 4, a.S)
	case AttributeProtoTensor:
		if a.T != nil {
			b = appendMessage(b, 5, marshalTensor(a.T))
		}
	}
	for _, f := range a.Floats {
		b = protowire.AppendTag(b, 7, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	for _, v := range a.Ints {
		b = appendVarint(b, 8, v)
	}
	for _, s := range a.Strings {
		b = appendRepeatedBytes(b, 9, s)
	}
	for i := range a.Tensors {
		b = appendMessage(b, 10, marshalTensor(&a.Tensors[i]))
	}
	b = appendString(b, 13, a.DocString)
	if a.Type != AttributeProtoUndefined {
		b = appendVarint(b, 20, int64(a.Type))
	}
	return b
}

func marshalTensor(t *TensorProto) []byte {
	var b []byte
	for _, d := range t.Dims {
		b = appendVarint(b, 1, d)
	}
	if t.DataType != TensorProtoUndefined {
		b = appendVarint(b, 2, int64(t.DataType))
	}
	if len(t.FloatData) > 0 {
		var packed []byte
		for _, f := range t.FloatData {
			packed = protowire.AppendFixed32(packed, math.Float32bits(f))
		}
		b = appendMessage(b, 4, packed)
	}
	if len(t.Int32Data) > 0 {
		var packed []byte
		for _, v := range t.Int32Data {
			packed = protowire.AppendVarint(packed, uint64(int64(v))) //nolint:gosec // G115: sign extension is the wire encoding.
		}
		b = appendMessage(b, 5, packed)
	}
	for _, s := range t.StringData {
		b = appendRepeatedBytes(b, 6, s)
	}
	if len(t.Int64Data) > 0 {
		var packed []byte
		for _, v := range t.Int64Data {
			packed = protowire.AppendVarint(packed, uint64(v)) //nolint:gosec // G115: two's complement on the wire.
		}
		b = appendMessage(b, 7, packed)
	}
	b = appendString(b, 8, t.Name)
	if len(t.RawData) > 0 {
		b = appendMessage(b, 9, t.RawData)
	}
	if len(t.DoubleData) > 0 {
		var packed []byte
		for _, f := range t.DoubleData {
			packed = protowire.AppendFixed64(packed, math.Float64bits(f))
		}
		b = appendMessage(b, 10, packed)
	}
	b = appendString(b, 12, t.DocString)
	return b
}

func marshalValueInfo(vi *ValueInfoProto) []byte {
	var b []byte
	b = appendString(b, 1, vi.Name)
	if vi.Type != nil && vi.Type.TensorType != nil {
		tt := vi.Type.TensorType
		var typ []byte
		typ = appendVarint(typ, 1, int64(tt.ElemType))
		if tt.Shape != nil {
			var shape []byte
			for _, d := range tt.Shape.Dims {
				var dim []byte
				if d.DimParam != "" {
					dim = appendString(dim, 2, d.DimParam)
				} else {
					dim = appendVarint(dim, 1, d.DimValue)
				}
				shape = appendMessage(shape, 1, dim)
			}
			typ = appendMessage(typ, 2, shape)
		}
		var tp []byte
		tp = appendMessage(tp, 1, typ)
		b = appendMessage(b, 2, tp)
	}
	b = appendString(b, 3, vi.DocString)
	return b
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v)) //nolint:gosec // G115: two's complement on the wire.
}

// appendString writes an optional string field, omitting the empty string.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	return appendRepeatedString(b, num, s)
}

// appendRepeatedString writes one element of a repeated string field,
// keeping empty strings (e.g. omitted optional node inputs).
func appendRepeatedString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendRepeatedBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}
