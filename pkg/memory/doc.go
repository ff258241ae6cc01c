// Package memory holds personal preference records and retrieves them by
// embedding similarity.
//
// Invariants:
// - Record ids are unique and never reused.
// - Every record's embedding has the store's configured dimension.
// - Mutations hold the write lock for the full mutate-then-persist sequence.
// - Readers always observe a consistent collection.
//
// Usage:
//
//	snap, _ := persistence.NewJSONFile(persistence.JSONConfig{Path: path})
//	store, _ := memory.NewStore(ctx, memory.Config{
//		Embedder:    embedder,
//		Snapshotter: snap,
//		Logger:      logger,
//	})
//	rec, _ := store.Store(ctx, "Use uv not pip", memory.CategoryPython, 9)
//	results, _ := store.Search(ctx, "python package manager", nil)
//	_, _ = rec, results
package memory
