package repositories

import (
	"encoding/binary"

	"github.com/x448/float16"
)

// PackFloat16 encodes a vector as little-endian fp16, halving the cache
// footprint of a float32 slice. Both cache tiers store vectors in this form.
func PackFloat16(vector []float32) []byte {
	buf := make([]byte, 2*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}
	return buf
}

// UnpackFloat16 decodes a vector packed by PackFloat16.
func UnpackFloat16(buf []byte) []float32 {
	vector := make([]float32, len(buf)/2)
	for i := range vector {
		vector[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:])).Float32()
	}
	return vector
}
