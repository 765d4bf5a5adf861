package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackFloat16_RoundTrip(t *testing.T) {
	vector := []float32{0.5, -1.25, 0, 2048, 0.099975586}

	packed := PackFloat16(vector)
	assert.Len(t, packed, 2*len(vector))

	unpacked := UnpackFloat16(packed)
	assert.Len(t, unpacked, len(vector))
	for i := range vector {
		assert.InDelta(t, vector[i], unpacked[i], 0.001, "index %d", i)
	}
}

func TestPackFloat16_Empty(t *testing.T) {
	assert.Empty(t, PackFloat16(nil))
	assert.Empty(t, UnpackFloat16(nil))
}
