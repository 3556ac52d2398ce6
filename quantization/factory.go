package quantization

import (
	"fmt"

	"github.com/hupe1980/gannet/distance"
)

// New creates a quantizer of the given kind. SQ8 and SQ4 are built
// with an FP32 companion so Reorder reranks with exact distances.
func New(kind Kind, metric distance.Metric, dim int) (Quantizer, error) {
	switch kind {
	case KindFP32:
		return NewFP32Quantizer(metric, dim)
	case KindSQ8:
		exact, err := NewFP32Quantizer(metric, dim)
		if err != nil {
			return nil, err
		}
		return NewSQ8Quantizer(metric, dim, exact)
	case KindSQ4:
		exact, err := NewFP32Quantizer(metric, dim)
		if err != nil {
			return nil, err
		}
		return NewSQ4Quantizer(metric, dim, exact)
	default:
		return nil, fmt.Errorf("unknown quantizer kind: %v", kind)
	}
}
