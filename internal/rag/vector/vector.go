// Package vector normalizes embeddings and converts them to and from the
// pgvector text literal format.
package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Precision is the number of decimals written per component by Encode.
const Precision = 8

// Normalize returns v scaled to unit L2 norm.
// A zero or non-finite norm returns an unchanged copy.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)

	var sumSq float64
	for _, x := range out {
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

// NormalizeAny coerces loosely typed values (decoded JSON, form input) to float64
// and normalizes them. Values that are not numeric become NaN, which leaves the
// vector unnormalized rather than failing.
func NormalizeAny(values []any) []float64 {
	v := make([]float64, len(values))
	for i, x := range values {
		v[i] = toFloat(x)
	}
	return Normalize(v)
}

func toFloat(x any) float64 {
	switch n := x.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case nil:
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case fmt.Stringer:
		return toFloat(n.String())
	default:
		return math.NaN()
	}
}

// Encode renders v as a pgvector literal with every component fixed to 8 decimals,
// e.g. "[0.12345678,-0.00000001]".
func Encode(v []float64) string {
	var sb strings.Builder
	sb.Grow(len(v)*(Precision+4) + 2)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(x, 'f', Precision, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Decode parses a pgvector literal.
func Decode(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("invalid vector literal %q", truncate(s, 32))
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse component %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// Float64s widens an embedding returned by a provider.
func Float64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Float32s narrows an embedding for providers and caches that store float32.
func Float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
