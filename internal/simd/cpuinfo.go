package simd

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
)

// Describe returns a one-line summary of the selected kernel set and
// the CPU it runs on, for the startup log.
func Describe() string {
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = "unknown cpu"
	}
	if hasOverride {
		return fmt.Sprintf("%s (forced via GANNET_SIMD) on %s", activeISA, brand)
	}
	return fmt.Sprintf("%s on %s", activeISA, brand)
}
