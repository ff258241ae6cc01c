package memory

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultImportance is used when a caller does not supply one.
	DefaultImportance = 5
	MinImportance     = 1
	MaxImportance     = 10

	// DefaultDimension matches all-MiniLM-L6-v2.
	DefaultDimension = 384
)

// Category is the closed set of preference domains.
type Category string

const (
	CategoryPython  Category = "python"
	CategoryGit     Category = "git"
	CategoryDocker  Category = "docker"
	CategoryGeneral Category = "general"
)

// AllCategories returns every category in display order.
func AllCategories() []Category {
	return []Category{CategoryPython, CategoryGit, CategoryDocker, CategoryGeneral}
}

// CategoryNames returns the category values as strings, for schemas and help text.
func CategoryNames() []string {
	all := AllCategories()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = string(c)
	}
	return names
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPython, CategoryGit, CategoryDocker, CategoryGeneral:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts user input to a Category. An empty string yields
// CategoryGeneral.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryGeneral, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", &ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("unknown category %q (must be one of: %s)", s, strings.Join(CategoryNames(), ", ")),
		}
	}
	return c, nil
}

// Source records how a memory was captured.
type Source string

const (
	SourceExplicit       Source = "explicit"
	SourceUserCorrection Source = "user_correction"
	SourceImplicit       Source = "implicit"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceExplicit, SourceUserCorrection, SourceImplicit:
		return true
	}
	return false
}

// ParseSource converts user input to a Source. An empty string yields
// SourceExplicit.
func ParseSource(s string) (Source, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SourceExplicit, nil
	}
	src := Source(s)
	if !src.Valid() {
		return "", &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", s)}
	}
	return src, nil
}

// Metadata describes where a record came from.
type Metadata struct {
	Source  Source `json:"source"`
	Context string `json:"context,omitempty"`
}

// Record is one remembered preference. Records are immutable once stored.
type Record struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Category   Category  `json:"category"`
	Importance int       `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
	Embedding  []float32 `json:"embedding"`
	Metadata   Metadata  `json:"metadata"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.Embedding != nil {
		out.Embedding = make([]float32, len(r.Embedding))
		copy(out.Embedding, r.Embedding)
	}
	return out
}

// SearchResult pairs a record with its cosine similarity to the query.
type SearchResult struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}

// CategoryCount is a category with the number of records filed under it.
type CategoryCount struct {
	Name  Category `json:"name"`
	Count int      `json:"count"`
}

// Stats summarizes the collection.
type Stats struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	BySource   map[Source]int   `json:"by_source"`
	Dimension  int              `json:"dimension"`
	Oldest     *time.Time       `json:"oldest,omitempty"`
	Newest     *time.Time       `json:"newest,omitempty"`
}

// ValidateContent trims content and rejects blank input.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", &ValidationError{Field: "content", Reason: "content cannot be empty"}
	}
	return trimmed, nil
}

// ValidateImportance rejects importance values outside [1,10].
func ValidateImportance(importance int) error {
	if importance < MinImportance || importance > MaxImportance {
		return &ValidationError{
			Field:  "importance",
			Reason: fmt.Sprintf("importance must be between %d and %d, got %d", MinImportance, MaxImportance, importance),
		}
	}
	return nil
}
