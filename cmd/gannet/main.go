// Command gannet is the reference benchmark driver: it builds (or
// loads) a graph over an .fvecs base set, then measures Recall@k and
// QPS against an .ivecs ground-truth file.
//
// Usage:
//
//	gannet base.fvecs query.fvecs gt.ivecs graph.bin level topk search_ef [num_threads] [iters]
//
// level selects the quantizer: 0 = FP32, 1 = SQ8, 2 = SQ4. Build
// parameters come from defaults, an optional INI file named by
// GANNET_CONFIG, and GANNET_* environment variables (a .env file in
// the working directory is honored).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/gannet"
	"github.com/hupe1980/gannet/config"
	"github.com/hupe1980/gannet/graph"
	"github.com/hupe1980/gannet/vecio"
)

// envOverrides are applied on top of the config file; set e.g.
// GANNET_M=32 or GANNET_METRIC=IP.
type envOverrides struct {
	Metric         string `envconfig:"METRIC" default:"L2"`
	M              int    `envconfig:"M"`
	EFConstruction int    `envconfig:"EF_CONSTRUCTION"`
	RandomSeed     int64  `envconfig:"RANDOM_SEED"`
	ConfigPath     string `envconfig:"CONFIG"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "gannet:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 7 {
		return fmt.Errorf("usage: gannet base_path query_path gt_path graph_path level topk search_ef [num_threads] [iters]")
	}

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("GANNET", &env); err != nil {
		return err
	}

	cfg := config.Default()
	if env.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(env.ConfigPath); err != nil {
			return err
		}
	}
	if env.M > 0 {
		cfg.HNSW.M = env.M
	}
	if env.EFConstruction > 0 {
		cfg.HNSW.EFConstruction = env.EFConstruction
	}
	if env.RandomSeed != 0 {
		cfg.HNSW.RandomSeed = env.RandomSeed
	}

	basePath, queryPath, gtPath, graphPath := args[0], args[1], args[2], args[3]
	level, err := parseIntArg("level", args[4])
	if err != nil {
		return err
	}
	topk, err := parseIntArg("topk", args[5])
	if err != nil {
		return err
	}
	searchEF, err := parseIntArg("search_ef", args[6])
	if err != nil {
		return err
	}
	numThreads := 1
	if len(args) >= 8 {
		if numThreads, err = parseIntArg("num_threads", args[7]); err != nil {
			return err
		}
	}
	iters := 10
	if len(args) >= 9 {
		if iters, err = parseIntArg("iters", args[8]); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	base, n, dim, err := vecio.ReadFvecs(basePath)
	if err != nil {
		return err
	}
	logger.Info("loaded base", "path", basePath, "n", n, "dim", dim)

	queries, nq, qdim, err := vecio.ReadFvecs(queryPath)
	if err != nil {
		return err
	}
	if qdim != dim {
		return fmt.Errorf("query dim %d != base dim %d", qdim, dim)
	}
	logger.Info("loaded queries", "path", queryPath, "nq", nq)

	gt, gtRows, gtK, err := vecio.ReadIvecs(gtPath)
	if err != nil {
		return err
	}
	if gtRows < nq {
		return fmt.Errorf("ground truth has %d rows for %d queries", gtRows, nq)
	}
	if gtK < topk {
		return fmt.Errorf("ground truth depth %d < topk %d", gtK, topk)
	}

	g, err := buildOrLoad(logger, cfg, env.Metric, base, n, dim, graphPath)
	if err != nil {
		return err
	}

	s, err := gannet.NewSearcher(g, base, n, dim, env.Metric, gannet.Level(level))
	if err != nil {
		return err
	}
	if err := s.Optimize(numThreads); err != nil {
		return err
	}
	if err := s.SetEf(searchEF); err != nil {
		return err
	}

	// Per-query ground-truth membership sets.
	truth := make([]*roaring.Bitmap, nq)
	for i := 0; i < nq; i++ {
		truth[i] = roaring.New()
		for j := 0; j < topk; j++ {
			truth[i].Add(uint32(gt[i*gtK+j]))
		}
	}

	bestQPS := 0.0
	for iter := 1; iter <= iters; iter++ {
		start := time.Now()
		pred, err := s.BatchSearch(queries, nq, topk, numThreads)
		if err != nil {
			return err
		}
		elapsed := time.Since(start).Seconds()
		qps := float64(nq) / elapsed
		if qps > bestQPS {
			bestQPS = qps
		}

		hits := 0
		for i := 0; i < nq; i++ {
			for j := 0; j < topk; j++ {
				if id := pred[i*topk+j]; id >= 0 && truth[i].Contains(uint32(id)) {
					hits++
				}
			}
		}
		recall := float64(hits) / float64(nq*topk)
		fmt.Printf("iter [%d/%d]\tRecall@%d = %.4f, QPS = %.2f\n", iter, iters, topk, recall, qps)
	}
	fmt.Printf("Best QPS = %.2f\n", bestQPS)
	return nil
}

func buildOrLoad(logger *slog.Logger, cfg config.Config, metric string, base []float32, n, dim int, graphPath string) (*graph.Graph, error) {
	if _, err := os.Stat(graphPath); err == nil {
		logger.Info("loading graph", "path", graphPath)
		return graph.Load(graphPath)
	}

	logger.Info("building graph",
		"m", cfg.HNSW.M,
		"ef_construction", cfg.HNSW.EFConstruction,
		"metric", metric,
	)
	builder, err := gannet.NewIndexBuilder(func(o *gannet.BuildOptions) {
		o.Dim = dim
		o.Metric = metric
		o.R = 2 * cfg.HNSW.M
		o.L = cfg.HNSW.EFConstruction
		o.RandomSeed = cfg.HNSW.RandomSeed
	})
	if err != nil {
		return nil, err
	}
	g, err := builder.Build(base, n)
	if err != nil {
		return nil, err
	}
	if err := g.Save(graphPath); err != nil {
		return nil, err
	}
	logger.Info("graph saved", "path", graphPath)
	return g, nil
}

func parseIntArg(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
