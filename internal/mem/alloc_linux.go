//go:build linux

package mem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocHuge maps an anonymous region large enough to carve out a
// 2 MiB-aligned block of the requested size and advises the kernel to
// back it with huge pages. Returns nil when the mapping fails, in
// which case the caller falls back to heap allocation.
func allocHuge(size int) []byte {
	// Anonymous mappings are only page-aligned; over-map by one
	// alignment unit and slice to the aligned offset.
	mapped := size + HugeAlignment
	buf, err := unix.Mmap(-1, 0, mapped, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // alignment requires unsafe
	offset := int((uintptr(HugeAlignment) - (addr & uintptr(HugeAlignment-1))) & uintptr(HugeAlignment-1))
	aligned := buf[offset : offset+size]
	// Advisory only: the mapping works the same if the kernel declines.
	_ = unix.Madvise(aligned, unix.MADV_HUGEPAGE)
	return aligned
}
