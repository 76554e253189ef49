// Package vecenc encodes and decodes the fixed-length float32 embedding
// vectors shared by the observations BLOB column and the observations_vec
// virtual table. Grounded on the teacher's float32SliceToJSON helper in
// memory-core/store/schema.go, split into a byte codec (for the durable BLOB
// column, exact round-trip) and a JSON codec (for vec0, which only accepts
// text or blob literals shaped like a JSON array).
package vecenc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimensions is the fixed embedding width used throughout agentmem.
const Dimensions = 384

// EncodeBytes packs a float32 vector into a little-endian byte blob
// suitable for the observations.embedding column. Decoding the result
// returns the original vector exactly.
func EncodeBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeBytes unpacks a blob produced by EncodeBytes.
func DecodeBytes(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vecenc: embedding blob length %d not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// EncodeJSON renders v as the JSON-array text literal vec0 expects for both
// inserts and MATCH queries.
func EncodeJSON(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, used for the brute-force fallback search path and for curation's
// near-duplicate clustering. Returns 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
