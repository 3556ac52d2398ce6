package gannet

import (
	"errors"

	"github.com/hupe1980/gannet/graph"
	"github.com/hupe1980/gannet/quantization"
	"github.com/hupe1980/gannet/searcher"
)

// Sentinel errors surfaced by the public API. Package-level errors
// from the subsystems are aliased or re-exported here so callers can
// match with errors.Is/As against a single surface.
var (
	// ErrInvalidArgument is returned for out-of-range or malformed
	// parameters.
	ErrInvalidArgument = searcher.ErrInvalidArgument

	// ErrNotTrained is returned when search runs before SetData.
	ErrNotTrained = searcher.ErrNotTrained

	// ErrCorruptFormat is returned when a graph file fails the format
	// invariant checks.
	ErrCorruptFormat = graph.ErrCorruptFormat

	// ErrUnknownIndexKind is returned for an unrecognized index kind.
	ErrUnknownIndexKind = errors.New("unknown index kind")
)

// DimensionMismatchError re-exports the quantizer dimension error for
// errors.As matching at the API boundary.
type DimensionMismatchError = quantization.DimensionMismatchError
