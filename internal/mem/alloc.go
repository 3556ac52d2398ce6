// Package mem provides aligned memory allocation for code blocks and
// query buffers.
package mem

import (
	"unsafe"
)

// Alignment is the byte alignment required for 512-bit vector loads.
const Alignment = 64

// HugeAlignment is the alignment used for quantizer code blocks so the
// kernel can back them with 2 MiB pages.
const HugeAlignment = 2 << 20

// AllocAligned allocates a byte slice of the given size whose first
// element sits on a 64-byte boundary. The backing array is kept alive
// by the returned slice.
func AllocAligned(size int) []byte {
	return allocWithAlignment(size, Alignment)
}

// AllocAlignedFloat32 allocates a float32 slice of the given length
// starting on a 64-byte boundary.
func AllocAlignedFloat32(n int) []float32 {
	if n <= 0 {
		return nil
	}
	buf := AllocAligned(n * 4)
	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // alignment requires unsafe
	return unsafe.Slice((*float32)(ptr), n)
}

// AllocCodes allocates the quantizer code block: 2 MiB-aligned, with
// transparent-hugepage advice where the platform supports it.
func AllocCodes(size int) []byte {
	if size <= 0 {
		return nil
	}
	if buf := allocHuge(size); buf != nil {
		return buf
	}
	return allocWithAlignment(size, HugeAlignment)
}

func allocWithAlignment(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	buf := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // alignment requires unsafe
	offset := (uintptr(align) - (addr & uintptr(align-1))) & uintptr(align-1)
	return buf[offset : offset+uintptr(size)]
}
