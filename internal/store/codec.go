package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/probgraph/internal/tensor"
)

// encodeTensor returns the shape and data blobs of t.
func encodeTensor(t tensor.Tensor) (shape, data []byte) {
	shape = make([]byte, 0, 4*t.Rank())
	for _, d := range t.Shape() {
		shape = binary.LittleEndian.AppendUint32(shape, uint32(d))
	}
	data = make([]byte, 0, 8*t.Size())
	for i := 0; i < t.Size(); i++ {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(t.At(i)))
	}
	return shape, data
}

// decodeTensor is the inverse of encodeTensor; kind is the name stored
// beside the blobs.
func decodeTensor(kind string, shape, data []byte) (tensor.Tensor, error) {
	k, ok := tensor.ParseKind(kind)
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("decode tensor: unknown kind %q", kind)
	}
	if len(shape)%4 != 0 {
		return tensor.Tensor{}, fmt.Errorf("decode tensor: shape blob has %d bytes", len(shape))
	}
	if len(data)%8 != 0 {
		return tensor.Tensor{}, fmt.Errorf("decode tensor: data blob has %d bytes", len(data))
	}
	s := make(tensor.Shape, len(shape)/4)
	for i := range s {
		s[i] = int(binary.LittleEndian.Uint32(shape[4*i:]))
	}
	values := make([]float64, len(data)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	t, err := tensor.New(s, values)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return t.AsKind(k), nil
}

func encodeFloat(f float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(f))
}

func decodeFloat(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("decode float: blob has %d bytes", len(b))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
