package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/correction"
)

const (
	MaxRecallLimit = 20
	MaxListLimit   = 50
)

// RememberParams defines parameters for the remember tool
type RememberParams struct {
	Content    string `json:"content"`
	Category   string `json:"category,omitempty"`
	Importance *int   `json:"importance,omitempty"`
}

// RememberResult is returned by the remember tool
type RememberResult struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Category   Category `json:"category"`
	Importance int      `json:"importance"`
	Message    string   `json:"message"`
}

// Remember stores a new preference.
func Remember(ctx context.Context, store *Store, params RememberParams) (*RememberResult, error) {
	content, err := ValidateContent(params.Content)
	if err != nil {
		return nil, err
	}
	category, err := ParseCategory(params.Category)
	if err != nil {
		return nil, err
	}
	importance := DefaultImportance
	if params.Importance != nil {
		importance = *params.Importance
	}
	if err := ValidateImportance(importance); err != nil {
		return nil, err
	}

	rec, err := store.Store(ctx, content, category, importance)
	if err != nil {
		return nil, err
	}

	return &RememberResult{
		ID:         rec.ID,
		Content:    rec.Content,
		Category:   rec.Category,
		Importance: rec.Importance,
		Message:    fmt.Sprintf("Remembered: %q (%s)", rec.Content, rec.Category),
	}, nil
}

// RecallParams defines parameters for the recall tool
type RecallParams struct {
	Query    string  `json:"query"`
	Category string  `json:"category,omitempty"`
	Limit    *int    `json:"limit,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// RecallItem is one ranked memory in a recall response.
type RecallItem struct {
	Content    string    `json:"content"`
	Category   Category  `json:"category"`
	Importance int       `json:"importance"`
	Score      float64   `json:"score"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecallResult is returned by the recall tool
type RecallResult struct {
	Results []RecallItem `json:"results"`
	Count   int          `json:"count"`
}

// Recall searches stored preferences by meaning.
func Recall(ctx context.Context, store *Store, params RecallParams) (*RecallResult, error) {
	query, err := ValidateContent(params.Query)
	if err != nil {
		return nil, &ValidationError{Field: "query", Reason: "query is required"}
	}

	opts := &SearchOptions{Limit: DefaultSearchLimit, MinScore: params.MinScore}
	if params.Limit != nil {
		if *params.Limit < 1 || *params.Limit > MaxRecallLimit {
			return nil, &ValidationError{
				Field:  "limit",
				Reason: fmt.Sprintf("limit must be between 1 and %d, got %d", MaxRecallLimit, *params.Limit),
			}
		}
		opts.Limit = *params.Limit
	}
	if params.Category != "" {
		category, err := ParseCategory(params.Category)
		if err != nil {
			return nil, err
		}
		opts.Category = &category
	}

	results, err := store.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	items := make([]RecallItem, 0, len(results))
	for _, r := range results {
		items = append(items, RecallItem{
			Content:    r.Record.Content,
			Category:   r.Record.Category,
			Importance: r.Record.Importance,
			Score:      r.Score,
			Timestamp:  r.Record.Timestamp,
		})
	}

	return &RecallResult{
		Results: items,
		Count:   len(items),
	}, nil
}

// ListMemoriesParams defines parameters for the list_memories tool
type ListMemoriesParams struct {
	Category string `json:"category,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
	Offset   *int   `json:"offset,omitempty"`
}

// MemorySummary is a record without its embedding.
type MemorySummary struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   Category  `json:"category"`
	Importance int       `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListMemoriesResult is returned by the list_memories tool
type ListMemoriesResult struct {
	Memories []MemorySummary `json:"memories"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// ListMemories pages through stored preferences.
func ListMemories(ctx context.Context, store *Store, params ListMemoriesParams) (*ListMemoriesResult, error) {
	opts := ListOptions{Limit: DefaultListLimit}
	if params.Limit != nil {
		if *params.Limit < 1 || *params.Limit > MaxListLimit {
			return nil, &ValidationError{
				Field:  "limit",
				Reason: fmt.Sprintf("limit must be between 1 and %d, got %d", MaxListLimit, *params.Limit),
			}
		}
		opts.Limit = *params.Limit
	}
	if params.Offset != nil {
		if *params.Offset < 0 {
			return nil, &ValidationError{Field: "offset", Reason: "offset cannot be negative"}
		}
		opts.Offset = *params.Offset
	}
	if params.Category != "" {
		category, err := ParseCategory(params.Category)
		if err != nil {
			return nil, err
		}
		opts.Category = &category
	}

	records, total, err := store.List(opts)
	if err != nil {
		return nil, err
	}

	memories := make([]MemorySummary, 0, len(records))
	for _, rec := range records {
		memories = append(memories, summarize(rec))
	}

	return &ListMemoriesResult{
		Memories: memories,
		Total:    total,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	}, nil
}

// GetMemoryParams defines parameters for the get_memory tool
type GetMemoryParams struct {
	ID string `json:"id"`
}

// GetMemoryResult is a single record without its embedding.
type GetMemoryResult struct {
	MemorySummary
	Metadata Metadata `json:"metadata"`
}

// GetMemory fetches one record by id.
func GetMemory(ctx context.Context, store *Store, params GetMemoryParams) (*GetMemoryResult, error) {
	if params.ID == "" {
		return nil, &ValidationError{Field: "id", Reason: "id is required"}
	}

	rec, ok := store.Get(params.ID)
	if !ok {
		return nil, &NotFoundError{ID: params.ID}
	}

	return &GetMemoryResult{
		MemorySummary: summarize(rec),
		Metadata:      rec.Metadata,
	}, nil
}

// ForgetParams defines parameters for the forget tool
type ForgetParams struct {
	ID string `json:"id"`
}

// ForgetResult is returned by the forget tool
type ForgetResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Forget deletes a record. Unknown ids are not an error.
func Forget(ctx context.Context, store *Store, params ForgetParams) (*ForgetResult, error) {
	if params.ID == "" {
		return nil, &ValidationError{Field: "id", Reason: "id is required"}
	}

	return &ForgetResult{
		ID:      params.ID,
		Deleted: store.Delete(ctx, params.ID),
	}, nil
}

// ListCategoriesResult is returned by the list_categories tool
type ListCategoriesResult struct {
	Categories []CategoryCount `json:"categories"`
	Count      int             `json:"count"`
}

// ListCategories reports the record count of every category.
func ListCategories(ctx context.Context, store *Store) (*ListCategoriesResult, error) {
	categories := store.Categories()
	return &ListCategoriesResult{
		Categories: categories,
		Count:      len(categories),
	}, nil
}

// MemoryStatsResult is returned by the memory_stats tool
type MemoryStatsResult struct {
	Stats
	Provider      string           `json:"provider,omitempty"`
	SnapshotPath  string           `json:"snapshot_path,omitempty"`
	AutoDetection correction.Stats `json:"auto_detection"`
}

// LearnParams defines parameters for the learn_from_text tool
type LearnParams struct {
	Text       string `json:"text"`
	Importance *int   `json:"importance,omitempty"`
}

// LearnResult is returned by the learn_from_text tool
type LearnResult struct {
	Detected   bool           `json:"detected"`
	Kind       string         `json:"kind,omitempty"`
	Preferred  string         `json:"preferred,omitempty"`
	Deprecated string         `json:"deprecated,omitempty"`
	Memory     *MemorySummary `json:"memory,omitempty"`
}

// LearnFromText scans free text for a correction or preference and stores
// what it finds. Corrections take priority over preferences.
func LearnFromText(ctx context.Context, store *Store, detector *correction.Detector, params LearnParams) (*LearnResult, error) {
	text, err := ValidateContent(params.Text)
	if err != nil {
		return nil, &ValidationError{Field: "text", Reason: "text is required"}
	}
	importance := DefaultImportance
	if params.Importance != nil {
		importance = *params.Importance
	}
	if err := ValidateImportance(importance); err != nil {
		return nil, err
	}

	var (
		result  LearnResult
		content string
		source  Source
		matched string
	)

	if c, ok := detector.DetectCorrection(text); ok {
		result = LearnResult{Detected: true, Kind: "correction", Preferred: c.Preferred, Deprecated: c.Deprecated}
		content = c.Statement()
		source = SourceUserCorrection
		matched = c.Match
	} else if p, ok := detector.DetectPreference(text); ok {
		result = LearnResult{Detected: true, Kind: "preference", Preferred: p.Preference}
		content = p.Preference
		source = SourceImplicit
		matched = p.Match
	} else {
		return &LearnResult{Detected: false}, nil
	}

	category, err := ParseCategory(detector.DetectCategory(matched))
	if err != nil {
		category = CategoryGeneral
	}

	rec, err := store.StoreWithMetadata(ctx, content, category, importance, Metadata{
		Source:  source,
		Context: matched,
	})
	if err != nil {
		return nil, err
	}

	summary := summarize(rec)
	result.Memory = &summary
	return &result, nil
}

func summarize(rec Record) MemorySummary {
	return MemorySummary{
		ID:         rec.ID,
		Content:    rec.Content,
		Category:   rec.Category,
		Importance: rec.Importance,
		Timestamp:  rec.Timestamp,
	}
}

// MemoryStats reports collection statistics alongside provider details.
func MemoryStats(ctx context.Context, store *Store, provider string, detector *correction.Detector) (*MemoryStatsResult, error) {
	result := &MemoryStatsResult{
		Stats:        store.Stats(),
		Provider:     provider,
		SnapshotPath: store.SnapshotPath(),
	}
	if detector != nil {
		result.AutoDetection = detector.Stats()
	}
	return result, nil
}
