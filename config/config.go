// Package config parses the INI-like configuration file: sections
// [hnsw], [search] and [quantization] with key=value lines and #
// comments. Unknown keys and lines outside sections are ignored for
// forward compatibility.
package config

import (
	"fmt"
	"os"

	"github.com/go-ini/ini"
)

// HNSW holds graph construction parameters.
type HNSW struct {
	M                   int   `ini:"M"`
	EFConstruction      int   `ini:"ef_construction"`
	MaxElements         int   `ini:"max_elements"`
	AllowReplaceDeleted bool  `ini:"allow_replace_deleted"`
	RandomSeed          int64 `ini:"random_seed"`
}

// Search holds runtime search parameters.
type Search struct {
	EF          int  `ini:"ef"`
	NumThreads  int  `ini:"num_threads"`
	UsePrefetch bool `ini:"use_prefetch"`
	BatchSize   int  `ini:"batch_size"`
}

// Quantization holds quantizer parameters.
type Quantization struct {
	NBits         int `ini:"nbits"`
	SubvectorSize int `ini:"subvector_size"`
	NumCentroids  int `ini:"num_centroids"`
}

// Config is the full parsed configuration.
type Config struct {
	HNSW         HNSW
	Search       Search
	Quantization Quantization
}

// Default returns the configuration defaults used when a key or the
// whole file is absent.
func Default() Config {
	return Config{
		HNSW: HNSW{
			M:              16,
			EFConstruction: 200,
			MaxElements:    1_000_000,
			RandomSeed:     100,
		},
		Search: Search{
			EF:          32,
			NumThreads:  1,
			UsePrefetch: true,
			BatchSize:   1000,
		},
		Quantization: Quantization{
			NBits:         8,
			SubvectorSize: 8,
			NumCentroids:  256,
		},
	}
}

var loadOptions = ini.LoadOptions{
	SkipUnrecognizableLines: true,
	Insensitive:             false,
}

// Load reads and parses the file at path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration bytes over the defaults.
func Parse(data []byte) (Config, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	// MapTo only touches keys present in the section; missing keys
	// keep their defaults, unknown keys are skipped.
	if err := f.Section("hnsw").MapTo(&cfg.HNSW); err != nil {
		return Config{}, fmt.Errorf("parse [hnsw]: %w", err)
	}
	if err := f.Section("search").MapTo(&cfg.Search); err != nil {
		return Config{}, fmt.Errorf("parse [search]: %w", err)
	}
	if err := f.Section("quantization").MapTo(&cfg.Quantization); err != nil {
		return Config{}, fmt.Errorf("parse [quantization]: %w", err)
	}
	return cfg, nil
}
