// Package gannet is an in-process approximate nearest-neighbor search
// engine over dense float32 vectors.
//
// It combines a hierarchical navigable small-world (HNSW) proximity
// graph with pluggable scalar quantization (FP32, SQ8, SQ4) and
// SIMD-dispatched distance kernels. The typical flow is build once,
// search many:
//
//	builder, _ := gannet.NewIndexBuilder(func(o *gannet.BuildOptions) {
//		o.Dim = 128
//		o.Metric = "L2"
//	})
//	g, _ := builder.Build(base, n)
//
//	s, _ := gannet.NewSearcher(g, base, n, 128, "L2", gannet.LevelSQ8)
//	_ = s.Optimize(0)
//	_ = s.SetEf(64)
//	ids, _ := s.Search(query, 10)
//
// Graphs serialize to a compact binary format with graph.Save and
// graph.Load; quantized searchers rerank their final top-k with exact
// float distances.
package gannet
