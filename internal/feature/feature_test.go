package feature

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestFloatsRoundTrip(t *testing.T) {
	in := []float32{0, 1, -2.5, 3.25e-3, 1e8}
	out, err := DecodeFloats(EncodeFloats(in))
	if err != nil {
		t.Fatalf("DecodeFloats failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("value %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeFloatsBadLength(t *testing.T) {
	if _, err := DecodeFloats([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for blob length not a multiple of 4")
	}
}

func TestMatrixFileRoundTrip(t *testing.T) {
	m := NewMatrix(3, 2)
	for i := range m.Data {
		m.Data[i] = float32(i) * 0.5
	}

	path := filepath.Join(t.TempDir(), "v1.feat")
	if err := WriteFile(path, m); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got.Rows != 3 || got.Cols != 2 {
		t.Fatalf("got %dx%d, want 3x2", got.Rows, got.Cols)
	}
	for i := range m.Data {
		if got.Data[i] != m.Data[i] {
			t.Fatalf("data[%d] = %v, want %v", i, got.Data[i], m.Data[i])
		}
	}
}

func TestDecodeMatrixRejectsBadHeader(t *testing.T) {
	if _, err := DecodeMatrix([]byte("XXXX\x00\x00\x00\x00\x00\x00\x00\x00")); err == nil {
		t.Fatal("expected error for bad magic")
	}
	// Header claims more data than the payload holds.
	m := NewMatrix(2, 2)
	b := EncodeMatrix(m)
	if _, err := DecodeMatrix(b[:len(b)-4]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func writeTestFrames(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	frames := make([]string, n)
	for i := range frames {
		frames[i] = filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i+1))
		if err := os.WriteFile(frames[i], nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return frames
}

func TestCreateBatchesShapes(t *testing.T) {
	tf := func(path string) (*Tensor, error) {
		return NewTensor(3, 4, 4), nil
	}

	cases := []struct {
		n, batchSize, wantBatches int
	}{
		{10, 4, 3},
		{8, 4, 2},
		{1, 4, 1},
		{3, 32, 1}, // batch size shrinks to n
	}
	for _, tc := range cases {
		batches, err := CreateBatches(writeTestFrames(t, tc.n), tf, tc.batchSize, nil)
		if err != nil {
			t.Fatalf("CreateBatches(n=%d, b=%d) failed: %v", tc.n, tc.batchSize, err)
		}
		if len(batches) != tc.wantBatches {
			t.Fatalf("n=%d b=%d: got %d batches, want %d", tc.n, tc.batchSize, len(batches), tc.wantBatches)
		}
		total := 0
		for _, b := range batches {
			if b.Dim(0) > tc.batchSize {
				t.Fatalf("batch of %d frames exceeds batch size %d", b.Dim(0), tc.batchSize)
			}
			total += b.Dim(0)
		}
		if total != tc.n {
			t.Fatalf("batch sizes sum to %d, want %d", total, tc.n)
		}
	}
}

func TestCreateBatchesEmptyInput(t *testing.T) {
	tf := func(path string) (*Tensor, error) { return NewTensor(1), nil }
	if _, err := CreateBatches(nil, tf, 4, nil); err == nil {
		t.Fatal("expected error for empty frame list")
	}
}
