// Package vector encodes embedding vectors into hex literals for storage.
//
// Two encodings are supported: raw little-endian float32 (lossless) and 8-bit
// uniform quantization over [-1,1] (lossy, one byte per component).
package vector

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Precision selects the vector encoding.
type Precision string

const (
	F32  Precision = "f32"
	Int8 Precision = "int8"
)

// Step is the quantization step of the int8 encoding.
const Step = 2.0 / 255.0

// Valid reports whether p names a known encoding. The empty value is valid
// and means F32.
func (p Precision) Valid() bool {
	switch p {
	case "", F32, Int8:
		return true
	}
	return false
}

// Encode encodes v with the given precision.
func Encode(p Precision, v []float32) (string, error) {
	switch p {
	case "", F32:
		return EncodeF32(v), nil
	case Int8:
		return EncodeInt8(v), nil
	default:
		return "", fmt.Errorf("unknown vector precision: %s", p)
	}
}

// Decode reverses Encode.
func Decode(p Precision, literal string) ([]float32, error) {
	switch p {
	case "", F32:
		return DecodeF32(literal)
	case Int8:
		return DecodeInt8(literal)
	default:
		return nil, fmt.Errorf("unknown vector precision: %s", p)
	}
}

// EncodeF32 packs v as little-endian float32 bytes and hex-encodes them.
func EncodeF32(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return hex.EncodeToString(buf)
}

// DecodeF32 parses a literal produced by EncodeF32.
func DecodeF32(literal string) ([]float32, error) {
	buf, err := hex.DecodeString(literal)
	if err != nil {
		return nil, fmt.Errorf("invalid f32 literal: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid f32 literal: %d bytes is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// EncodeInt8 quantizes v, assumed normalized to [-1,1], into signed bytes
// and hex-encodes them. Components outside [-1,1] saturate at -128 or 127.
func EncodeInt8(v []float32) string {
	buf := make([]byte, len(v))
	for i, f := range v {
		buf[i] = byte(Quantize(f))
	}
	return hex.EncodeToString(buf)
}

// DecodeInt8 parses a literal produced by EncodeInt8.
func DecodeInt8(literal string) ([]float32, error) {
	buf, err := hex.DecodeString(literal)
	if err != nil {
		return nil, fmt.Errorf("invalid int8 literal: %w", err)
	}
	v := make([]float32, len(buf))
	for i, b := range buf {
		v[i] = Dequantize(int8(b))
	}
	return v, nil
}

// Quantize maps one component to its int8 bucket.
func Quantize(f float32) int8 {
	q := math.Floor((float64(f)+1)/Step - 128 + 0.5)
	switch {
	case math.IsNaN(q):
		return 0
	case q < math.MinInt8:
		return math.MinInt8
	case q > math.MaxInt8:
		return math.MaxInt8
	}
	return int8(q)
}

// Dequantize maps a bucket back to the center of its range.
func Dequantize(q int8) float32 {
	return float32((float64(q)+128)*Step - 1)
}
