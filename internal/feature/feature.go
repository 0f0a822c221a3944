// Package feature defines the in-memory and on-disk representations of
// frame-level feature data: dense float32 tensors, row-major matrices, and
// the .feat file format used to persist per-video feature sequences.
package feature

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Tensor is a dense float32 tensor in row-major layout.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero-filled tensor with the given shape.
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// NumElements returns the product of the tensor's dimensions.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.Shape[i]
}

// Matrix is a row-major 2D float32 matrix. A video's feature sequence is a
// Matrix with one row per frame.
type Matrix struct {
	Rows, Cols int
	Data       []float32
}

// NewMatrix allocates a zero-filled Rows x Cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Row returns a view of row i. The slice aliases the matrix storage.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// SetRow copies v into row i.
func (m *Matrix) SetRow(i int, v []float32) {
	copy(m.Row(i), v)
}

// EncodeFloats encodes a slice of float32 values as a little-endian byte
// sequence of IEEE 754 float32 values without a length prefix; the length
// is derived from the byte count on decode.
func EncodeFloats(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeFloats decodes a byte sequence produced by EncodeFloats.
func DecodeFloats(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("feature: invalid float blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// featMagic identifies a .feat file: magic, uint32 row count, uint32 column
// count, then rows*cols little-endian float32 values in row-major order.
var featMagic = [4]byte{'N', 'V', 'F', '1'}

// EncodeMatrix serializes m into the .feat wire format.
func EncodeMatrix(m *Matrix) []byte {
	b := make([]byte, 12, 12+len(m.Data)*4)
	copy(b, featMagic[:])
	binary.LittleEndian.PutUint32(b[4:], uint32(m.Rows))
	binary.LittleEndian.PutUint32(b[8:], uint32(m.Cols))
	return append(b, EncodeFloats(m.Data)...)
}

// DecodeMatrix parses the .feat wire format.
func DecodeMatrix(b []byte) (*Matrix, error) {
	if len(b) < 12 {
		return nil, fmt.Errorf("feature: blob too short (%d bytes)", len(b))
	}
	if [4]byte(b[:4]) != featMagic {
		return nil, fmt.Errorf("feature: bad magic %q", b[:4])
	}
	rows := int(binary.LittleEndian.Uint32(b[4:]))
	cols := int(binary.LittleEndian.Uint32(b[8:]))
	data, err := DecodeFloats(b[12:])
	if err != nil {
		return nil, err
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("feature: payload holds %d values, header says %dx%d", len(data), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// WriteFile writes m to path in the .feat format.
func WriteFile(path string, m *Matrix) error {
	return os.WriteFile(path, EncodeMatrix(m), 0644)
}

// ReadFile reads a .feat file from path.
func ReadFile(path string) (*Matrix, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := DecodeMatrix(b)
	if err != nil {
		return nil, fmt.Errorf("feature: reading %s: %w", path, err)
	}
	return m, nil
}
