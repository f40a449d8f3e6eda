package onnx

import (
	"errors"
	"fmt"

	"github.com/born-ml/mlconvert/internal/tensor"
)

// ErrUnsupportedDataType reports an ONNX element type with no runtime equivalent.
var ErrUnsupportedDataType = errors.New("unsupported data type")

// DataTypeFromProto converts an ONNX element type to tensor.DataType.
func DataTypeFromProto(onnxType int32) (tensor.DataType, error) {
	switch onnxType {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	case TensorProtoString:
		return tensor.String, nil
	default:
		return 0, fmt.Errorf("%w: onnx element type %d", ErrUnsupportedDataType, onnxType)
	}
}

// DataTypeToProto converts a tensor.DataType to its ONNX element type.
func DataTypeToProto(dt tensor.DataType) int32 {
	switch dt {
	case tensor.Float32:
		return TensorProtoFloat
	case tensor.Float64:
		return TensorProtoDouble
	case tensor.Int32:
		return TensorProtoInt32
	case tensor.Int64:
		return TensorProtoInt64
	case tensor.Uint8:
		return TensorProtoUint8
	case tensor.Bool:
		return TensorProtoBool
	case tensor.String:
		return TensorProtoString
	default:
		return TensorProtoUndefined
	}
}

// TensorFromProto converts a TensorProto to a RawTensor.
// String tensors cannot back a RawTensor and are rejected.
func TensorFromProto(proto *TensorProto) (*tensor.RawTensor, error) {
	dtype, err := DataTypeFromProto(proto.DataType)
	if err != nil {
		return nil, err
	}
	if !dtype.Storable() {
		return nil, fmt.Errorf("%w: %s tensor %q", ErrUnsupportedDataType, dtype, proto.Name)
	}

	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		if dim < 0 {
			return nil, fmt.Errorf("tensor %q: negative dimension %d", proto.Name, dim)
		}
		shape[i] = int(dim)
	}

	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, err
	}
	n := t.NumElements()

	// Data fields are mutually exclusive; raw_data is the common case.
	switch {
	case len(proto.RawData) > 0:
		if len(proto.RawData) != t.ByteSize() {
			return nil, fmt.Errorf("tensor %q: raw data has %d bytes, expected %d", proto.Name, len(proto.RawData), t.ByteSize())
		}
		copy(t.Data(), proto.RawData)
	case len(proto.FloatData) > 0:
		if dtype != tensor.Float32 || len(proto.FloatData) != n {
			return nil, fmt.Errorf("tensor %q: float_data does not match %s%v", proto.Name, dtype, shape)
		}
		copy(t.AsFloat32(), proto.FloatData)
	case len(proto.DoubleData) > 0:
		if dtype != tensor.Float64 || len(proto.DoubleData) != n {
			return nil, fmt.Errorf("tensor %q: double_data does not match %s%v", proto.Name, dtype, shape)
		}
		copy(t.AsFloat64(), proto.DoubleData)
	case len(proto.Int64Data) > 0:
		if dtype != tensor.Int64 || len(proto.Int64Data) != n {
			return nil, fmt.Errorf("tensor %q: int64_data does not match %s%v", proto.Name, dtype, shape)
		}
		copy(t.AsInt64(), proto.Int64Data)
	case len(proto.Int32Data) > 0:
		if len(proto.Int32Data) != n {
			return nil, fmt.Errorf("tensor %q: int32_data has %d values, expected %d", proto.Name, len(proto.Int32Data), n)
		}
		// int32_data also carries uint8 and bool elements.
		switch dtype {
		case tensor.Int32:
			copy(t.AsInt32(), proto.Int32Data)
		case tensor.Uint8:
			for i, v := range proto.Int32Data {
				t.AsUint8()[i] = uint8(v) //nolint:gosec // G115: uint8 payload.
			}
		case tensor.Bool:
			for i, v := range proto.Int32Data {
				t.AsBool()[i] = v != 0
			}
		default:
			return nil, fmt.Errorf("tensor %q: int32_data cannot hold %s", proto.Name, dtype)
		}
	case n != 0:
		return nil, fmt.Errorf("tensor %q: no data for %d elements", proto.Name, n)
	}

	return t, nil
}

// TensorToProto converts a RawTensor to a TensorProto using raw_data.
func TensorToProto(name string, t *tensor.RawTensor) TensorProto {
	dims := make([]int64, len(t.Shape()))
	for i, d := range t.Shape() {
		dims[i] = int64(d)
	}
	return TensorProto{
		Name:     name,
		DataType: DataTypeToProto(t.DType()),
		Dims:     dims,
		RawData:  append([]byte(nil), t.Data()...),
	}
}

// SpecFromValueInfo reads the declared element type and shape of a value.
// Symbolic or absent dimensions become tensor.Unknown.
func SpecFromValueInfo(vi *ValueInfoProto) (tensor.Spec, error) {
	if vi.Type == nil || vi.Type.TensorType == nil {
		return tensor.Spec{}, fmt.Errorf("value %q has no tensor type", vi.Name)
	}
	tt := vi.Type.TensorType
	dtype, err := DataTypeFromProto(tt.ElemType)
	if err != nil {
		return tensor.Spec{}, fmt.Errorf("value %q: %w", vi.Name, err)
	}
	spec := tensor.Spec{DType: dtype}
	if tt.Shape != nil {
		spec.Dims = make([]int, len(tt.Shape.Dims))
		for i, d := range tt.Shape.Dims {
			if d.DimParam != "" || d.DimValue <= 0 {
				spec.Dims[i] = tensor.Unknown
				continue
			}
			spec.Dims[i] = int(d.DimValue)
		}
	}
	return spec, nil
}

// ValueInfo builds a ValueInfoProto for a named spec. Unknown dims are
// written as the symbolic dimension "N".
func ValueInfo(name string, spec tensor.Spec) ValueInfoProto {
	dims := make([]DimensionProto, len(spec.Dims))
	for i, d := range spec.Dims {
		if d == tensor.Unknown {
			dims[i] = DimensionProto{DimParam: "N"}
			continue
		}
		dims[i] = DimensionProto{DimValue: int64(d)}
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{
			ElemType: DataTypeToProto(spec.DType),
			Shape:    &TensorShapeProto{Dims: dims},
		}},
	}
}
