package tensor

import (
	"encoding/binary"
	"math"
)

// The Decode*/Encode* helpers below read/write the i'th little-endian scalar of the
// given type directly into a raw byte slice (as returned by ArrayBuffer.Bytes), so
// package reduceop's kernels never need their own dtype-aware byte plumbing.

func DecodeF32(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func EncodeF32(b []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
}

func DecodeF64(b []byte, i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
}

func EncodeF64(b []byte, i int, v float64) {
	binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
}

func DecodeU16(b []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(b[i*2:])
}

func EncodeU16(b []byte, i int, v uint16) {
	binary.LittleEndian.PutUint16(b[i*2:], v)
}

func DecodeI32(b []byte, i int) int32 {
	return int32(binary.LittleEndian.Uint32(b[i*4:]))
}

func EncodeI32(b []byte, i int, v int32) {
	binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
}

func DecodeI64(b []byte, i int) int64 {
	return int64(binary.LittleEndian.Uint64(b[i*8:]))
}

func EncodeI64(b []byte, i int, v int64) {
	binary.LittleEndian.PutUint64(b[i*8:], uint64(v))
}

func putF32(b []byte, v float32) {
	EncodeF32(b, 0, v)
}

func getF32(b []byte) float32 {
	return DecodeF32(b, 0)
}

func putI64(b []byte, v int64) {
	EncodeI64(b, 0, v)
}

func getI64(b []byte) int64 {
	return DecodeI64(b, 0)
}
