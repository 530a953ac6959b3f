package store

import "github.com/AhmedEldessouki1982/cdns/internal/types"

// Both engine variants reject vectors whose dimension does not match the
// index. Vectors are never padded or truncated.
func checkDim(vec []float32, dim int) error {
	if len(vec) != dim {
		return types.Validationf("vector has %d dimensions, index requires %d", len(vec), dim)
	}
	return nil
}
