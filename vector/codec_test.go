package vector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestF32RoundTrip(t *testing.T) {
	v := []float32{0, 1, -1, 0.5, -0.25, 3.1415927, float32(math.SmallestNonzeroFloat32)}

	literal := EncodeF32(v)
	assert.Len(t, literal, len(v)*8)

	got, err := DecodeF32(literal)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestF32KnownLiteral(t *testing.T) {
	// 1.0 is 0x3f800000, stored little-endian.
	assert.Equal(t, "0000803f", EncodeF32([]float32{1}))
	assert.Equal(t, "", EncodeF32(nil))
}

func TestInt8ErrorBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	v := make([]float32, 1024)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	v[0], v[1], v[2] = -1, 1, 0

	literal := EncodeInt8(v)
	assert.Len(t, literal, len(v)*2)

	got, err := DecodeInt8(literal)
	require.NoError(t, err)
	require.Len(t, got, len(v))
	for i := range v {
		diff := math.Abs(float64(got[i] - v[i]))
		assert.LessOrEqualf(t, diff, Step, "component %d: %f decoded as %f", i, v[i], got[i])
	}
}

func TestInt8Extremes(t *testing.T) {
	assert.Equal(t, int8(-128), Quantize(-1))
	assert.Equal(t, int8(127), Quantize(1))
	assert.Equal(t, "807f", EncodeInt8([]float32{-1, 1}))
}

func TestInt8ClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int8
	}{
		{"far below", -3, -128},
		{"just below", -1.01, -128},
		{"just above", 1.01, 127},
		{"far above", 42, 127},
		{"nan", float32(math.NaN()), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quantize(tt.in))
		})
	}
}

func TestEncodeByPrecision(t *testing.T) {
	v := []float32{0.5, -0.5}

	f32, err := Encode(F32, v)
	require.NoError(t, err)
	assert.Equal(t, EncodeF32(v), f32)

	def, err := Encode("", v)
	require.NoError(t, err)
	assert.Equal(t, f32, def)

	i8, err := Encode(Int8, v)
	require.NoError(t, err)
	assert.Equal(t, EncodeInt8(v), i8)

	_, err = Encode("f16", v)
	assert.Error(t, err)
	assert.False(t, Precision("f16").Valid())
}

func TestDecodeRejectsBadLiterals(t *testing.T) {
	_, err := DecodeF32("zz")
	assert.Error(t, err)

	_, err = DecodeF32("0000")
	assert.Error(t, err)

	_, err = DecodeInt8("abc")
	assert.Error(t, err)
}
