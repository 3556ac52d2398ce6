package simd

import (
	"fmt"
	"math/rand"
	"testing"
)

func benchFloats(b *testing.B, dim int, fn func(a, c []float32) float32) {
	rng := rand.New(rand.NewSource(1))
	x := randFloats(rng, dim)
	y := randFloats(rng, dim)
	b.SetBytes(int64(dim * 4))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sink = fn(x, y)
	}
}

var sink float32

func BenchmarkSquaredL2(b *testing.B) {
	for _, dim := range []int{128, 768, 1536} {
		b.Run(fmt.Sprintf("generic/%d", dim), func(b *testing.B) { benchFloats(b, dim, squaredL2Generic) })
		b.Run(fmt.Sprintf("unroll8/%d", dim), func(b *testing.B) { benchFloats(b, dim, squaredL2Unroll8) })
		b.Run(fmt.Sprintf("unroll16/%d", dim), func(b *testing.B) { benchFloats(b, dim, squaredL2Unroll16) })
	}
}

func BenchmarkDot(b *testing.B) {
	for _, dim := range []int{128, 768, 1536} {
		b.Run(fmt.Sprintf("generic/%d", dim), func(b *testing.B) { benchFloats(b, dim, dotGeneric) })
		b.Run(fmt.Sprintf("unroll8/%d", dim), func(b *testing.B) { benchFloats(b, dim, dotUnroll8) })
	}
}

func BenchmarkSquaredL2U8(b *testing.B) {
	rng := rand.New(rand.NewSource(2))
	x := randBytes(rng, 768)
	y := randBytes(rng, 768)
	b.Run("generic", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			sink = squaredL2U8Generic(x, y)
		}
	})
	b.Run("unroll8", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			sink = squaredL2U8Unroll8(x, y)
		}
	})
}
