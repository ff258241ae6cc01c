package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/correction"
)

// DefaultDimension matches all-MiniLM-L6-v2 so snapshots stay compatible
// when switching between the hashed and onnx providers.
const DefaultDimension = 384

const (
	tokenWeight   = 1.0
	conceptWeight = 1.5
	bigramWeight  = 0.5
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "for": true, "in": true, "on": true, "is": true, "it": true,
	"i": true, "we": true, "you": true, "my": true, "our": true, "be": true,
	"this": true, "that": true, "with": true, "please": true,
}

// Hashed is a dependency-free provider based on feature hashing. Tokens and
// adjacent token pairs land in hashed buckets; words from the category
// lexicon also light up a shared concept bucket so that "uv" and "python"
// end up near each other.
type Hashed struct {
	dimension int
	concepts  map[string][]string
}

// NewHashed creates a hashed provider. Non-positive dimensions use
// DefaultDimension.
func NewHashed(dimension int) *Hashed {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	concepts := make(map[string][]string)
	for category, words := range correction.Keywords() {
		for _, w := range words {
			concepts[w] = append(concepts[w], category)
		}
	}

	return &Hashed{dimension: dimension, concepts: concepts}
}

func (h *Hashed) Name() string   { return "hashed" }
func (h *Hashed) Dimension() int { return h.dimension }

// Embed returns an L2-normalized vector. Text made only of punctuation
// yields the zero vector.
func (h *Hashed) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, wrapError(h.Name(), ErrEmptyText)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapError(h.Name(), err)
	}

	vec := make([]float64, h.dimension)

	var prev string
	for _, tok := range correction.Tokenize(text) {
		if stopwords[tok] {
			prev = ""
			continue
		}

		vec[h.bucket("t:"+tok)] += tokenWeight
		for _, category := range h.concepts[tok] {
			vec[h.bucket("c:"+category)] += conceptWeight
		}
		if prev != "" {
			vec[h.bucket("b:"+prev+" "+tok)] += bigramWeight
		}
		prev = tok
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}

	out := make([]float32, h.dimension)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hashed) bucket(feature string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(feature))
	return int(f.Sum32() % uint32(h.dimension))
}
