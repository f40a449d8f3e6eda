package onnx

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidWire reports bytes that are not a well-formed protobuf message.
var ErrInvalidWire = errors.New("invalid protobuf wire data")

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := readModelProto(data, model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// reader walks the fields of one message. Errors are sticky: after the first
// failure next reports false and err holds the cause.
type reader struct {
	buf []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func (r *reader) next() bool {
	if r.err != nil || len(r.buf) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.buf)
	if n < 0 {
		r.fail(n)
		return false
	}
	r.num, r.typ = num, typ
	r.buf = r.buf[n:]
	return true
}

func (r *reader) fail(n int) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %d: %w", ErrInvalidWire, r.num, protowire.ParseError(n))
	}
}

func (r *reader) expect(typ protowire.Type) bool {
	if r.err != nil {
		return false
	}
	if r.typ != typ {
		r.err = fmt.Errorf("%w: field %d has wire type %d, expected %d", ErrInvalidWire, r.num, r.typ, typ)
		return false
	}
	return true
}

func (r *reader) skip() {
	n := protowire.ConsumeFieldValue(r.num, r.typ, r.buf)
	if n < 0 {
		r.fail(n)
		return
	}
	r.buf = r.buf[n:]
}

func (r *reader) bytes() []byte {
	if !r.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.buf)
	if n < 0 {
		r.fail(n)
		return nil
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) string() string {
	return string(r.bytes())
}

// copyBytes returns the field's bytes detached from the input buffer.
func (r *reader) copyBytes() []byte {
	v := r.bytes()
	if v == nil {
		return nil
	}
	return append([]byte{}, v...)
}

func (r *reader) varint() int64 {
	if !r.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.buf = r.buf[n:]
	return int64(v) //nolint:gosec // G115: protobuf int64 fields are two's complement varints.
}

func (r *reader) float32() float32 {
	if !r.expect(protowire.Fixed32Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed32(r.buf)
	if n < 0 {
		r.fail(n)
		return 0
	}
	r.buf = r.buf[n:]
	return math.Float32frombits(v)
}

// message decodes an embedded message with read.
func (r *reader) message(read func(b []byte) error) {
	b := r.bytes()
	if r.err != nil {
		return
	}
	if err := read(b); err != nil {
		r.err = fmt.Errorf("field %d: %w", r.num, err)
	}
}

// int64s appends a repeated varint field in packed or unpacked encoding.
func (r *reader) int64s(dst *[]int64) {
	if r.typ != protowire.BytesType {
		*dst = append(*dst, r.varint())
		return
	}
	packed := r.bytes()
	for len(packed) > 0 && r.err == nil {
		v, n := protowire.ConsumeVarint(packed)
		if n < 0 {
			r.fail(n)
			return
		}
		*dst = append(*dst, int64(v)) //nolint:gosec // G115: see varint.
		packed = packed[n:]
	}
}

func (r *reader) int32s(dst *[]int32) {
	var wide []int64
	r.int64s(&wide)
	for _, v := range wide {
		*dst = append(*dst, int32(v)) //nolint:gosec // G115: int32 fields are sign-extended varints.
	}
}

// float32s appends a repeated float field in packed or unpacked encoding.
func (r *reader) float32s(dst *[]float32) {
	if r.typ != protowire.BytesType {
		*dst = append(*dst, r.float32())
		return
	}
	packed := r.bytes()
	for len(packed) > 0 && r.err == nil {
		v, n := protowire.ConsumeFixed32(packed)
		if n < 0 {
			r.fail(n)
			return
		}
		*dst = append(*dst, math.Float32frombits(v))
		packed = packed[n:]
	}
}

// float64s appends a repeated double field in packed or unpacked encoding.
func (r *reader) float64s(dst *[]float64) {
	if r.typ != protowire.BytesType {
		if !r.expect(protowire.Fixed64Type) {
			return
		}
		v, n := protowire.ConsumeFixed64(r.buf)
		if n < 0 {
			r.fail(n)
			return
		}
		r.buf = r.buf[n:]
		*dst = append(*dst, math.Float64frombits(v))
		return
	}
	packed := r.bytes()
	for len(packed) > 0 && r.err == nil {
		v, n := protowire.ConsumeFixed64(packed)
		if n < 0 {
			r.fail(n)
			return
		}
		*dst = append(*dst, math.Float64frombits(v))
		packed = packed[n:]
	}
}

func readModelProto(b []byte, m *ModelProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // ir_version
			m.IRVersion = r.varint()
		case 2: // producer_name
			m.ProducerName = r.string()
		case 3: // producer_version
			m.ProducerVersion = r.string()
		case 4: // domain
			m.Domain = r.string()
		case 5: // model_version
			m.ModelVersion = r.varint()
		case 6: // doc_string
			m.DocString = r.string()
		case 7: // graph
			m.Graph = &GraphProto{}
			r.message(func(b []byte) error { return readGraphProto(b, m.Graph) })
		case 8: // opset_import
			var opset OperatorSetID
			r.message(func(b []byte) error { return readOperatorSetID(b, &opset) })
			m.OpsetImport = append(m.OpsetImport, opset)
		case 14: // metadata_props
			var entry StringStringEntry
			r.message(func(b []byte) error { return readStringStringEntry(b, &entry) })
			m.MetadataProps = append(m.MetadataProps, entry)
		default:
			r.skip()
		}
	}
	return r.err
}

func readGraphProto(b []byte, m *GraphProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // node
			var node NodeProto
			r.message(func(b []byte) error { return readNodeProto(b, &node) })
			m.Nodes = append(m.Nodes, node)
		case 2: // name
			m.Name = r.string()
		case 5: // initializer
			var t TensorProto
			r.message(func(b []byte) error { return readTensorProto(b, &t) })
			m.Initializers = append(m.Initializers, t)
		case 10: // doc_string
			m.DocString = r.string()
		case 11, 12, 13: // input, output, value_info
			var vi ValueInfoProto
			r.message(func(b []byte) error { return readValueInfoProto(b, &vi) })
			switch r.num {
			case 11:
				m.Inputs = append(m.Inputs, vi)
			case 12:
				m.Outputs = append(m.Outputs, vi)
			default:
				m.ValueInfo = append(m.ValueInfo, vi)
			}
		default:
			r.skip()
		}
	}
	return r.err
}

func readNodeProto(b []byte, m *NodeProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // input
			m.Inputs = append(m.Inputs, r.string())
		case 2: // output
			m.Outputs = append(m.Outputs, r.string())
		case 3: // name
			m.Name = r.string()
		case 4: // op_type
			m.OpType = r.string()
		case 5: // attribute
			var attr AttributeProto
			r.message(func(b []byte) error { return readAttributeProto(b, &attr) })
			m.Attributes = append(m.Attributes, attr)
		case 6: // doc_string
			m.DocString = r.string()
		case 7: // domain
			m.Domain = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

func readTensorProto(b []byte, m *TensorProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // dims
			r.int64s(&m.Dims)
		case 2: // data_type
			m.DataType = int32(r.varint()) //nolint:gosec // G115: enum value.
		case 4: // float_data
			r.float32s(&m.FloatData)
		case 5: // int32_data
			r.int32s(&m.Int32Data)
		case 6: // string_data
			m.StringData = append(m.StringData, r.copyBytes())
		case 7: // int64_data
			r.int64s(&m.Int64Data)
		case 8: // name
			m.Name = r.string()
		case 9: // raw_data
			m.RawData = r.copyBytes()
		case 10: // double_data
			r.float64s(&m.DoubleData)
		case 12: // doc_string
			m.DocString = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

func readValueInfoProto(b []byte, m *ValueInfoProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // name
			m.Name = r.string()
		case 2: // type
			m.Type = &TypeProto{}
			r.message(func(b []byte) error { return readTypeProto(b, m.Type) })
		case 3: // doc_string
			m.DocString = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

func readTypeProto(b []byte, m *TypeProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // tensor_type
			m.TensorType = &TensorTypeProto{}
			r.message(func(b []byte) error { return readTensorTypeProto(b, m.TensorType) })
		default:
			r.skip()
		}
	}
	return r.err
}

func readTensorTypeProto(b []byte, m *TensorTypeProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // elem_type
			m.ElemType = int32(r.varint()) //nolint:gosec // G115: enum value.
		case 2: // shape
			m.Shape = &TensorShapeProto{}
			r.message(func(b []byte) error { return readTensorShapeProto(b, m.Shape) })
		default:
			r.skip()
		}
	}
	return r.err
}

func readTensorShapeProto(b []byte, m *TensorShapeProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // dim
			var dim DimensionProto
			r.message(func(b []byte) error { return readDimensionProto(b, &dim) })
			m.Dims = append(m.Dims, dim)
		default:
			r.skip()
		}
	}
	return r.err
}

func readDimensionProto(b []byte, m *DimensionProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // dim_value
			m.DimValue = r.varint()
		case 2: // dim_param
			m.DimParam = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

func readAttributeProto(b []byte, m *AttributeProto) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // name
			m.Name = r.string()
		case 2: // f
			m.F = r.float32()
		case 3: // i
			m.I = r.varint()
		case 4: // s
			m.S = r.copyBytes()
		case 5: // t
			m.T = &TensorProto{}
			r.message(func(b []byte) error { return readTensorProto(b, m.T) })
		case 7: // floats
			r.float32s(&m.Floats)
		case 8: // ints
			r.int64s(&m.Ints)
		case 9: // strings
			m.Strings = append(m.Strings, r.copyBytes())
		case 10: // tensors
			var t TensorProto
			r.message(func(b []byte) error { return readTensorProto(b, &t) })
			m.Tensors = append(m.Tensors, t)
		case 13: // doc_string
			m.DocString = r.string()
		case 20: // type
			m.Type = int32(r.varint()) //nolint:gosec // G115: enum value.
		default:
			// Subgraph attributes (g, graphs) are not used by any lowering.
			r.skip()
		}
	}
	return r.err
}

func readOperatorSetID(b []byte, m *OperatorSetID) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // domain
			m.Domain = r.string()
		case 2: // version
			m.Version = r.varint()
		default:
			r.skip()
		}
	}
	return r.err
}

func readStringStringEntry(b []byte, m *StringStringEntry) error {
	r := reader{buf: b}
	for r.next() {
		switch r.num {
		case 1: // key
			m.Key = r.string()
		case 2: // value
			m.Value = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}
