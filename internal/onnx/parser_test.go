package onnx

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// wireMessage builds protobuf bytes field by field.
type wireMessage []byte

func (m wireMessage) varint(num protowire.Number, v int64) wireMessage {
	m = protowire.AppendTag(m, num, protowire.VarintType)
	return protowire.AppendVarint(m, uint64(v)) //nolint:gosec // G115: two's complement encoding.
}

func (m wireMessage) bytes(num protowire.Number, v []byte) wireMessage {
	m = protowire.AppendTag(m, num, protowire.BytesType)
	return protowire.AppendBytes(m, v)
}

func (m wireMessage) str(num protowire.Number, s string) wireMessage {
	return m.bytes(num, []byte(s))
}

func (m wireMessage) fixed32(num protowire.Number, v float32) wireMessage {
	m = protowire.AppendTag(m, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(m, math.Float32bits(v))
}

func (m wireMessage) packedInts(num protowire.Number, vs ...int64) wireMessage {
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v)) //nolint:gosec // G115: two's complement encoding.
	}
	return m.bytes(num, packed)
}

// buildValueInfo returns a ValueInfoProto with one symbolic dimension.
func buildValueInfo(name string, dtype int32) []byte {
	dim := wireMessage{}.str(2, "batch")
	shape := wireMessage{}.bytes(1, dim)
	tensorType := wireMessage{}.varint(1, int64(dtype)).bytes(2, shape)
	typ := wireMessage{}.bytes(1, tensorType)
	return wireMessage{}.str(1, name).bytes(2, typ)
}

// buildLabelEncoderModel returns the bytes of a LabelEncoder model written the
// way skl2onnx does: packed int64 keys, an unpacked int attribute and a
// raw_data initializer.
func buildLabelEncoderModel() []byte {
	keys := wireMessage{}.str(1, "keys_int64s").varint(20, AttributeProtoInts).packedInts(8, 5, -1, 300)
	def := wireMessage{}.str(1, "default_int64").varint(20, AttributeProtoInt).varint(3, -1)
	strs := wireMessage{}.str(1, "note").varint(20, AttributeProtoStrings).str(9, "a").str(9, "bc")
	scale := wireMessage{}.str(1, "scale").varint(20, AttributeProtoFloat).fixed32(2, 0.5)

	node := wireMessage{}.
		str(1, "x").
		str(2, "y").
		str(3, "encoder").
		str(4, "LabelEncoder").
		bytes(5, keys).
		bytes(5, def).
		bytes(5, strs).
		bytes(5, scale).
		str(7, DomainML)

	raw := []byte{1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}
	init := wireMessage{}.varint(1, 2).varint(2, TensorProtoInt64).str(8, "w").bytes(9, raw)

	graph := wireMessage{}.
		bytes(1, node).
		str(2, "encoder_graph").
		bytes(5, init).
		bytes(11, buildValueInfo("x", TensorProtoInt64)).
		bytes(12, buildValueInfo("y", TensorProtoInt64))

	return wireMessage{}.
		varint(1, 8).
		str(2, "skl2onnx").
		str(3, "1.16.0").
		bytes(7, graph).
		bytes(8, wireMessage{}.str(1, "").varint(2, 13)).
		bytes(8, wireMessage{}.str(1, DomainML).varint(2, 2))
}

func TestParseLabelEncoderModel(t *testing.T) {
	model, err := Parse(buildLabelEncoderModel())
	require.NoError(t, err)

	assert.Equal(t, int64(8), model.IRVersion)
	assert.Equal(t, "skl2onnx", model.ProducerName)
	assert.Equal(t, int64(13), model.OpsetVersion(""))
	assert.Equal(t, int64(13), model.OpsetVersion(DomainDefault))
	assert.Equal(t, int64(2), model.OpsetVersion(DomainML))

	require.NotNil(t, model.Graph)
	require.Len(t, model.Graph.Nodes, 1)
	node := model.Graph.Nodes[0]
	assert.Equal(t, "LabelEncoder", node.OpType)
	assert.Equal(t, DomainML, node.Domain)
	assert.Equal(t, []string{"x"}, node.Inputs)
	assert.Equal(t, []string{"y"}, node.Outputs)

	require.Len(t, node.Attributes, 4)
	assert.Equal(t, []int64{5, -1, 300}, node.Attributes[0].Ints)
	assert.Equal(t, int64(-1), node.Attributes[1].I)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("bc")}, node.Attributes[2].Strings)
	assert.InDelta(t, 0.5, node.Attributes[3].F, 1e-9)

	spec, err := SpecFromValueInfo(&model.Graph.Inputs[0])
	require.NoError(t, err)
	assert.Equal(t, []int{-1}, spec.Dims)

	require.Len(t, model.Graph.Initializers, 1)
	w, err := TensorFromProto(&model.Graph.Initializers[0])
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, w.AsInt64())
}

func TestParseUnpackedRepeatedInts(t *testing.T) {
	attr := wireMessage{}.str(1, "keys_int64s").varint(20, AttributeProtoInts).varint(8, 3).varint(8, 4)
	node := wireMessage{}.str(4, "LabelEncoder").bytes(5, attr)
	data := wireMessage{}.bytes(7, wireMessage{}.bytes(1, node))

	model, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, model.Graph.Nodes[0].Attributes[0].Ints)
}

func TestParseSkipsUnknownFields(t *testing.T) {
	data := wireMessage{}.varint(1, 7).str(99, "future").fixed32(98, 1)
	model, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), model.IRVersion)
}

func TestParseRejectsMalformedWire(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated varint", []byte{0x08, 0x80}},
		{"truncated length", wireMessage{}.str(2, "skl2onnx")[:5]},
		{"wrong wire type", wireMessage{}.str(1, "eight")},
		{"garbage", []byte{0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			assert.ErrorIs(t, err, ErrInvalidWire)
		})
	}
}

func TestParseEmptyData(t *testing.T) {
	model, err := Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, model.Graph)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encoder.onnx")
	require.NoError(t, os.WriteFile(path, buildLabelEncoderModel(), 0o600))

	model, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, model.Graph.Nodes, 1)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	model, err := Parse(buildLabelEncoderModel())
	require.NoError(t, err)
	model.MetadataProps = []StringStringEntry{{Key: "origin", Value: "test"}}
	model.Graph.Nodes[0].Attributes = append(model.Graph.Nodes[0].Attributes,
		AttributeProto{Name: "keys_floats", Type: AttributeProtoFloats, Floats: []float32{1.5, -2}})

	again, err := Parse(Marshal(model))
	require.NoError(t, err)
	assert.Equal(t, model, again)
}

func TestWriteFile(t *testing.T) {
	model, err := Parse(buildLabelEncoderModel())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.onnx")
	require.NoError(t, WriteFile(path, model))
	again, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, model, again)
}

func TestInspect(t *testing.T) {
	model, err := Parse(buildLabelEncoderModel())
	require.NoError(t, err)

	info := Inspect(model)
	assert.Equal(t, int64(13), info.OpsetVersion)
	assert.Equal(t, int64(2), info.MLOpsetVersion)
	assert.Equal(t, []string{"x"}, info.InputNames)
	assert.Equal(t, []string{"y"}, info.OutputNames)
	assert.Equal(t, []string{"LabelEncoder"}, info.OpTypes)
	assert.Equal(t, 1, info.NodeCount)
	assert.Equal(t, 1, info.WeightCount)

	empty := Inspect(&ModelProto{IRVersion: 3})
	assert.Zero(t, empty.NodeCount)
}
