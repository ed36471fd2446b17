package reembed

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	if magnitude == 0 {
		return make([]float32, len(v))
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// isZeroVector reports whether v is a vector with every component zero,
// the shape an embedding failure leaves behind. A nil or empty slice is
// not a zero vector: it means no embedding was loaded for the document.
func isZeroVector(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	for _, val := range v {
		if val != 0 {
			return false
		}
	}
	return true
}
