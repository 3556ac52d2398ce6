//go:build arm64

package simd

func init() {
	// ASIMD is mandatory in the ARMv8-A baseline, which is the only
	// arm64 profile Go targets.
	hasASIMD = true

	initCapabilities()
}
