package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "mcp-standards.memory"

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Snapshotter persists the whole collection at once.
type Snapshotter interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Path() string
}

// Config holds store configuration
type Config struct {
	Embedder    Embedder
	Snapshotter Snapshotter // Optional, nil keeps the collection in memory only
	Dimension   int         // Optional, defaults to Embedder.Dimension()
	Logger      zerolog.Logger
	Now         func() time.Time // Optional, for tests
}

// Store is the process-local collection of preference records.
type Store struct {
	embedder    Embedder
	snapshotter Snapshotter
	dimension   int
	logger      zerolog.Logger
	now         func() time.Time

	mu      sync.RWMutex
	records []*Record
	byID    map[string]*Record
}

// NewStore creates a store and loads the persisted snapshot, if any.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	dimension := cfg.Embedder.Dimension()
	if cfg.Dimension > 0 {
		if dimension > 0 && cfg.Dimension != dimension {
			return nil, fmt.Errorf("%w: configured %d, provider %d", ErrDimensionMismatch, cfg.Dimension, dimension)
		}
		dimension = cfg.Dimension
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		embedder:    cfg.Embedder,
		snapshotter: cfg.Snapshotter,
		dimension:   dimension,
		logger:      cfg.Logger,
		now:         now,
		byID:        make(map[string]*Record),
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	observability.SetMemoryEntries(len(s.records))

	s.logger.Info().
		Int("records", len(s.records)).
		Int("dimension", s.dimension).
		Msg("Memory store initialized")

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	if s.snapshotter == nil {
		return nil
	}

	records, err := s.snapshotter.Load(ctx)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Bool("persistence_warning", true).
			Str("path", s.snapshotter.Path()).
			Msg("Failed to load memory snapshot, starting empty")
		return nil
	}

	for i := range records {
		rec := records[i].Clone()
		if len(rec.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %s has %d dimensions, expected %d",
				ErrDimensionMismatch, rec.ID, len(rec.Embedding), s.dimension)
		}
		if _, exists := s.byID[rec.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		s.records = append(s.records, &rec)
		s.byID[rec.ID] = &rec
	}

	return nil
}

// Dimension returns the embedding dimension every record must have.
func (s *Store) Dimension() int {
	return s.dimension
}

// SnapshotPath returns the persisted location, or "" for an in-memory store.
func (s *Store) SnapshotPath() string {
	if s.snapshotter == nil {
		return ""
	}
	return s.snapshotter.Path()
}

// Store remembers an explicit preference.
func (s *Store) Store(ctx context.Context, content string, category Category, importance int) (Record, error) {
	return s.StoreWithMetadata(ctx, content, category, importance, Metadata{Source: SourceExplicit})
}

// StoreWithMetadata validates, embeds and inserts a new record, then persists
// the collection.
func (s *Store) StoreWithMetadata(ctx context.Context, content string, category Category, importance int, meta Metadata) (Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"memory.store",
		attribute.String("category", string(category)),
		attribute.Int("importance", importance),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)

	trimmed, err := ValidateContent(content)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}
	if err := ValidateImportance(importance); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}
	if category == "" {
		category = CategoryGeneral
	}
	if !category.Valid() {
		err := &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}
	if meta.Source == "" {
		meta.Source = SourceExplicit
	}
	if !meta.Source.Valid() {
		err := &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", meta.Source)}
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}

	// Embedding may be slow, so it runs before the lock is taken.
	vector, err := s.embed(ctx, trimmed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return Record{}, err
	}

	rec := &Record{
		ID:         uuid.New().String(),
		Content:    trimmed,
		Category:   category,
		Importance: importance,
		Timestamp:  s.now().UTC(),
		Embedding:  vector,
		Metadata:   meta,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	s.byID[rec.ID] = rec
	s.persistLocked(ctx)

	observability.RecordMemoryAudit(ctx, "store", actor(ctx), observability.AuditSuccess, map[string]interface{}{
		"id":       rec.ID,
		"category": string(rec.Category),
		"source":   string(rec.Metadata.Source),
	})

	logger.Info().
		Str("id", rec.ID).
		Str("category", string(rec.Category)).
		Int("importance", rec.Importance).
		Str("source", string(rec.Metadata.Source)).
		Msg("Memory stored")

	return rec.Clone(), nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// Delete removes a record. It returns false, without writing, when the id is
// unknown.
func (s *Store) Delete(ctx context.Context, id string) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.delete", attribute.String("id", id))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		span.SetAttributes(attribute.Bool("found", false))
		return false
	}

	delete(s.byID, id)
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	s.persistLocked(ctx)

	span.SetAttributes(attribute.Bool("found", true))
	observability.RecordMemoryAudit(ctx, "delete", actor(ctx), observability.AuditSuccess, map[string]interface{}{"id": id})
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().Str("id", id).Msg("Memory deleted")
	return true
}

// Clear removes every record and persists the empty collection.
func (s *Store) Clear(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.records)
	s.records = nil
	s.byID = make(map[string]*Record)
	s.persistLocked(ctx)

	observability.RecordMemoryAudit(ctx, "clear", actor(ctx), observability.AuditSuccess, map[string]interface{}{"removed": removed})
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Warn().Int("removed", removed).Msg("Memory cleared")
}

// Count returns the number of records, optionally limited to one category.
func (s *Store) Count(category *Category) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if category == nil {
		return len(s.records)
	}

	n := 0
	for _, rec := range s.records {
		if rec.Category == *category {
			n++
		}
	}
	return n
}

// Snapshot returns copies of every record in insertion order.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyLocked()
}

// Categories reports every category with its record count.
func (s *Store) Categories() []CategoryCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Category]int)
	for _, rec := range s.records {
		counts[rec.Category]++
	}

	out := make([]CategoryCount, 0, len(AllCategories()))
	for _, c := range AllCategories() {
		out = append(out, CategoryCount{Name: c, Count: counts[c]})
	}
	return out
}

// Stats summarizes the collection.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Total:      len(s.records),
		ByCategory: make(map[Category]int),
		BySource:   make(map[Source]int),
		Dimension:  s.dimension,
	}
	for _, c := range AllCategories() {
		st.ByCategory[c] = 0
	}

	for _, rec := range s.records {
		st.ByCategory[rec.Category]++
		st.BySource[rec.Metadata.Source]++

		ts := rec.Timestamp
		if st.Oldest == nil || ts.Before(*st.Oldest) {
			st.Oldest = &ts
		}
		if st.Newest == nil || ts.After(*st.Newest) {
			newest := ts
			st.Newest = &newest
		}
	}

	return st
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := s.embedder.Embed(ctx, text)
	observability.RecordEmbedding(time.Since(start), err == nil)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vector) != s.dimension {
		return nil, &EmbeddingError{
			Err: fmt.Errorf("%w: provider returned %d dimensions, expected %d", ErrDimensionMismatch, len(vector), s.dimension),
		}
	}
	return vector, nil
}

// persistLocked writes the full collection. Callers must hold the write lock.
// Failures are logged and swallowed: the in-memory state stays authoritative
// and the next successful save reconciles the file.
func (s *Store) persistLocked(ctx context.Context) {
	observability.SetMemoryEntries(len(s.records))

	if s.snapshotter == nil {
		return
	}

	start := time.Now()
	err := s.snapshotter.Save(ctx, s.copyLocked())
	observability.RecordMemoryWrite(time.Since(start))

	if err != nil {
		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Warn().
			Err(err).
			Bool("persistence_warning", true).
			Str("path", s.snapshotter.Path()).
			Int("records", len(s.records)).
			Msg("Failed to persist memory snapshot")
	}
}

// actor names the caller in audit events.
func actor(ctx context.Context) string {
	if id := tracing.GetClientID(ctx); id != "" {
		return id
	}
	return "local"
}

func (s *Store) copyLocked() []Record {
	out := make([]Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}
