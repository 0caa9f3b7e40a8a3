package catalog

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// EncodeFloat32s encodes s as little-endian IEEE 754 single precision.
func EncodeFloat32s(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// DecodeFloat32s is the inverse of EncodeFloat32s. Trailing bytes are ignored.
func DecodeFloat32s(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// EncodeFloat16s encodes s as little-endian IEEE 754 half precision (lossy).
func EncodeFloat16s(s []float32) []byte {
	const size = 2
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[i*size:(i+1)*size], float16.Fromfloat32(v).Bits())
	}
	return out
}

// DecodeFloat16s widens half precision values back to float32.
func DecodeFloat16s(b []byte) []float32 {
	const size = 2
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[i*size : (i+1)*size])).Float32()
	}
	return out
}
