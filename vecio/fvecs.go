// Package vecio reads and writes the .fvecs / .ivecs vector file
// formats used by the common ANN benchmark datasets: each row is a
// little-endian i32 dimension followed by that many 4-byte values.
package vecio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"
)

// ErrMalformed is returned when a vector file violates the format.
var ErrMalformed = errors.New("malformed vector file")

// ReadFvecs loads an .fvecs file into a row-major matrix.
func ReadFvecs(path string) (data []float32, n, dim int, err error) {
	raw, n, dim, err := readRows(path, 4)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(raw) == 0 {
		return nil, n, dim, nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n*dim), n, dim, nil //nolint:gosec // little-endian view
}

// ReadIvecs loads an .ivecs file into a row-major matrix.
func ReadIvecs(path string) (data []int32, n, dim int, err error) {
	raw, n, dim, err := readRows(path, 4)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(raw) == 0 {
		return nil, n, dim, nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&raw[0])), n*dim), n, dim, nil //nolint:gosec // little-endian view
}

// readRows reads every row, verifying a consistent per-row dimension.
func readRows(path string, elemSize int) ([]byte, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, 0, err
	}

	r := bufio.NewReaderSize(f, 1<<20)

	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: empty file", ErrMalformed, path)
	}
	dim := int(int32(binary.LittleEndian.Uint32(header[:])))
	if dim <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: %s: dimension %d", ErrMalformed, path, dim)
	}

	rowSize := 4 + dim*elemSize
	if info.Size()%int64(rowSize) != 0 {
		return nil, 0, 0, fmt.Errorf("%w: %s: size %d not a multiple of row size %d", ErrMalformed, path, info.Size(), rowSize)
	}
	n := int(info.Size() / int64(rowSize))

	data := make([]byte, n*dim*elemSize)
	row := data[:dim*elemSize]
	if _, err := io.ReadFull(r, row); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	for i := 1; i < n; i++ {
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: %s: row %d: %w", ErrMalformed, path, i, err)
		}
		if got := int(int32(binary.LittleEndian.Uint32(header[:]))); got != dim {
			return nil, 0, 0, fmt.Errorf("%w: %s: row %d dimension %d != %d", ErrMalformed, path, i, got, dim)
		}
		row = data[i*dim*elemSize : (i+1)*dim*elemSize]
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: %s: row %d: %w", ErrMalformed, path, i, err)
		}
	}
	return data, n, dim, nil
}

// WriteFvecs writes a row-major matrix as an .fvecs file.
func WriteFvecs(path string, data []float32, n, dim int) error {
	if len(data) < n*dim {
		return fmt.Errorf("data length %d shorter than %d x %d", len(data), n, dim)
	}
	var raw []byte
	if n*dim > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), n*dim*4) //nolint:gosec // little-endian view
	}
	return writeRows(path, raw, n, dim, 4)
}

// WriteIvecs writes a row-major matrix as an .ivecs file.
func WriteIvecs(path string, data []int32, n, dim int) error {
	if len(data) < n*dim {
		return fmt.Errorf("data length %d shorter than %d x %d", len(data), n, dim)
	}
	var raw []byte
	if n*dim > 0 {
		raw = unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), n*dim*4) //nolint:gosec // little-endian view
	}
	return writeRows(path, raw, n, dim, 4)
}

func writeRows(path string, raw []byte, n, dim, elemSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, 1<<20)
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(dim))

	for i := 0; i < n; i++ {
		if _, err := w.Write(header[:]); err != nil {
			_ = f.Close()
			return err
		}
		if _, err := w.Write(raw[i*dim*elemSize : (i+1)*dim*elemSize]); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
