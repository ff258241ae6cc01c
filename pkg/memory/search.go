package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
	DefaultListLimit   = 10

	// ScoreTieTolerance is the score gap under which importance decides order.
	ScoreTieTolerance = 0.01
)

// SearchOptions configures search behavior
type SearchOptions struct {
	Category *Category `json:"category,omitempty"`
	Limit    int       `json:"limit"`
	MinScore float64   `json:"min_score"`
}

// ListOptions configures listing and pagination.
type ListOptions struct {
	Category *Category `json:"category,omitempty"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Search ranks records by cosine similarity to the query. The scan is
// exhaustive; there is no index.
func (s *Store) Search(ctx context.Context, query string, opts *SearchOptions) ([]SearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &SearchOptions{}
	}

	attrs := []attribute.KeyValue{attribute.Int("limit", opts.Limit)}
	if opts.Category != nil {
		attrs = append(attrs, attribute.String("category", string(*opts.Category)))
	}
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.search", attrs...)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()
	defer func() { observability.RecordMemorySearch(time.Since(start)) }()

	if strings.TrimSpace(query) == "" {
		err := &ValidationError{Field: "query", Reason: "query cannot be empty"}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if opts.Category != nil && !opts.Category.Valid() {
		err := &ValidationError{Field: "category", Reason: "unknown category " + string(*opts.Category)}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0)
	for _, rec := range s.records {
		if opts.Category != nil && rec.Category != *opts.Category {
			continue
		}
		score := CosineSimilarity(vector, rec.Embedding)
		if score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{Record: rec.Clone(), Score: score})
	}

	rankResults(results)

	if len(results) > limit {
		results = results[:limit]
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	logger.Debug().
		Int("candidates", len(s.records)).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

// List returns records ordered by importance, then recency.
func (s *Store) List(opts ListOptions) ([]Record, int, error) {
	if opts.Offset < 0 {
		return nil, 0, &ValidationError{Field: "offset", Reason: "offset cannot be negative"}
	}
	if opts.Category != nil && !opts.Category.Valid() {
		return nil, 0, &ValidationError{Field: "category", Reason: "unknown category " + string(*opts.Category)}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		if opts.Category != nil && rec.Category != *opts.Category {
			continue
		}
		filtered = append(filtered, rec)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})

	total := len(filtered)
	if opts.Offset >= total {
		return []Record{}, total, nil
	}

	end := opts.Offset + limit
	if end > total {
		end = total
	}

	page := make([]Record, 0, end-opts.Offset)
	for _, rec := range filtered[opts.Offset:end] {
		page = append(page, rec.Clone())
	}
	return page, total, nil
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either vector has no
// magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankResults sorts by score, then swaps neighbours until no adjacent pair
// breaks ranksBefore. A result only ever passes a neighbour whose score is
// within ScoreTieTolerance and whose importance is lower, so it can climb a
// chain of near ties but never jumps a clear score gap.
func rankResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})

	// ranksBefore is antisymmetric, so every pair swaps at most once and
	// the loop ends after at most n*(n-1)/2 swaps.
	for swapped := true; swapped; {
		swapped = false
		for i := 1; i < len(results); i++ {
			if ranksBefore(results[i], results[i-1]) {
				results[i-1], results[i] = results[i], results[i-1]
				swapped = true
			}
		}
	}
}

// ranksBefore reports whether a belongs ahead of b. Near ties go to
// importance, then score, then id; anything else goes to score.
func ranksBefore(a, b SearchResult) bool {
	if math.Abs(a.Score-b.Score) >= ScoreTieTolerance {
		return a.Score > b.Score
	}
	if a.Record.Importance != b.Record.Importance {
		return a.Record.Importance > b.Record.Importance
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Record.ID < b.Record.ID
}
