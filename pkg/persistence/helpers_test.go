package persistence

import (
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
)

func sampleRecords() []memory.Record {
	base := time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)
	return []memory.Record{
		{
			ID:         "a1",
			Content:    "Use uv instead of pip",
			Category:   memory.CategoryPython,
			Importance: 8,
			Timestamp:  base,
			Embedding:  []float32{0.6, 0.8, 0, 0},
			Metadata:   memory.Metadata{Source: memory.SourceUserCorrection, Context: "use uv not pip"},
		},
		{
			ID:         "b2",
			Content:    "Prefer conventional commits",
			Category:   memory.CategoryGit,
			Importance: 5,
			Timestamp:  base.Add(time.Hour),
			Embedding:  []float32{0, 0, 1, -0.25},
			Metadata:   memory.Metadata{Source: memory.SourceExplicit},
		},
	}
}
