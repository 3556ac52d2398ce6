package gannet_test

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/gannet"
)

func Example() {
	const n, dim = 1000, 64

	rng := rand.New(rand.NewSource(1))
	base := make([]float32, n*dim)
	for i := range base {
		base[i] = rng.Float32()
	}

	builder, err := gannet.NewIndexBuilder(func(o *gannet.BuildOptions) {
		o.Dim = dim
		o.Metric = "L2"
		o.Logger = gannet.NoopLogger()
	})
	if err != nil {
		panic(err)
	}
	g, err := builder.Build(base, n)
	if err != nil {
		panic(err)
	}

	s, err := gannet.NewSearcher(g, base, n, dim, "L2", gannet.LevelSQ8, func(o *gannet.SearcherOptions) {
		o.Logger = gannet.NoopLogger()
	})
	if err != nil {
		panic(err)
	}
	if err := s.SetEf(64); err != nil {
		panic(err)
	}

	// The base vector itself is its own nearest neighbor.
	ids, err := s.Search(base[:dim], 3)
	if err != nil {
		panic(err)
	}
	fmt.Println(ids[0])
	// Output: 0
}
