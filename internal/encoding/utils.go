// Package encoding implements the little-endian binary codecs shared by the
// serialized index format (spec §6.2) and the SQL backend's blob columns
// (spec §6.3), adapted from the teacher's internal/encoding helpers to
// float64 vectors and LSH signatures.
package encoding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when vector bytes are malformed.
var ErrInvalidVector = errors.New("invalid vector encoding")

// EncodeVector encodes a float64 vector to bytes: a little-endian int32
// length followed by that many little-endian float64 values.
func EncodeVector(vector []float64) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}

	buf := new(bytes.Buffer)

	n := len(vector)
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("vector too large: %d elements exceeds maximum", n)
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(n)); err != nil {
		return nil, fmt.Errorf("failed to encode vector length: %w", err)
	}
	for _, val := range vector {
		if err := binary.Write(buf, binary.LittleEndian, val); err != nil {
			return nil, fmt.Errorf("failed to encode vector value: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// DecodeVector decodes bytes produced by EncodeVector back to a float64
// vector.
func DecodeVector(data []byte) ([]float64, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}

	buf := bytes.NewReader(data)

	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to decode vector length: %w", err)
	}
	if length < 0 {
		return nil, ErrInvalidVector
	}
	if length == 0 {
		return []float64{}, nil
	}

	expectedBytes := int(length) * 8
	if buf.Len() < expectedBytes {
		return nil, ErrInvalidVector
	}

	vector := make([]float64, length)
	for i := int32(0); i < length; i++ {
		if err := binary.Read(buf, binary.LittleEndian, &vector[i]); err != nil {
			return nil, fmt.Errorf("failed to decode vector value at index %d: %w", i, err)
		}
	}

	return vector, nil
}

// EncodeSignature encodes a hash signature: a one-byte kind tag (0=packed
// bits, 1=symbol tuple), then either the uint64 bits or an int32 length
// followed by that many little-endian int64 symbols.
func EncodeSignature(packed bool, bits uint64, sym []int64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if packed {
		if err := buf.WriteByte(0); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, bits); err != nil {
			return nil, fmt.Errorf("failed to encode signature bits: %w", err)
		}
		return buf.Bytes(), nil
	}
	if err := buf.WriteByte(1); err != nil {
		return nil, err
	}
	if len(sym) > math.MaxInt32 {
		return nil, fmt.Errorf("signature too wide: %d symbols exceeds maximum", len(sym))
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(len(sym))); err != nil {
		return nil, fmt.Errorf("failed to encode signature length: %w", err)
	}
	for _, v := range sym {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("failed to encode signature symbol: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeSignature decodes bytes produced by EncodeSignature.
func DecodeSignature(data []byte) (packed bool, bits uint64, sym []int64, err error) {
	if len(data) < 1 {
		return false, 0, nil, errors.New("invalid signature encoding")
	}
	buf := bytes.NewReader(data)
	kind, _ := buf.ReadByte()
	switch kind {
	case 0:
		if err := binary.Read(buf, binary.LittleEndian, &bits); err != nil {
			return false, 0, nil, fmt.Errorf("failed to decode signature bits: %w", err)
		}
		return true, bits, nil, nil
	case 1:
		var n int32
		if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
			return false, 0, nil, fmt.Errorf("failed to decode signature length: %w", err)
		}
		if n < 0 {
			return false, 0, nil, errors.New("invalid signature encoding")
		}
		sym = make([]int64, n)
		for i := range sym {
			if err := binary.Read(buf, binary.LittleEndian, &sym[i]); err != nil {
				return false, 0, nil, fmt.Errorf("failed to decode signature symbol %d: %w", i, err)
			}
		}
		return false, 0, sym, nil
	default:
		return false, 0, nil, fmt.Errorf("unknown signature encoding kind %d", kind)
	}
}

// ValidateVector rejects nil/empty vectors and non-finite entries (spec §7
// Numerical).
func ValidateVector(vector []float64) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	for _, val := range vector {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ErrInvalidVector
		}
	}
	return nil
}
