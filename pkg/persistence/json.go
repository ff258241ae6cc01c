package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/rs/zerolog"
)

// JSONFile keeps the collection as a single JSON array.
type JSONFile struct {
	path         string
	atomicWrites bool
	logger       zerolog.Logger
	now          func() time.Time
}

// JSONConfig configures a JSONFile.
type JSONConfig struct {
	Path         string
	AtomicWrites bool
	Logger       zerolog.Logger
}

// NewJSONFile creates a JSON snapshotter.
func NewJSONFile(cfg JSONConfig) (*JSONFile, error) {
	if cfg.Path == "" {
		return nil, errors.New("snapshot path is required")
	}
	return &JSONFile{
		path:         cfg.Path,
		atomicWrites: cfg.AtomicWrites,
		logger:       cfg.Logger,
		now:          time.Now,
	}, nil
}

// Path returns the snapshot location.
func (j *JSONFile) Path() string {
	return j.path
}

// Load reads every record. A missing or empty file is an empty collection.
// A file that does not parse is moved aside so the next Save cannot
// overwrite it, and the collection starts empty.
func (j *JSONFile) Load(ctx context.Context) ([]memory.Record, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []memory.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []memory.Record{}, nil
	}

	var records []memory.Record
	if err := json.Unmarshal(data, &records); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%d", j.path, j.now().Unix())
		if renameErr := os.Rename(j.path, backup); renameErr != nil {
			j.logger.Error().Err(renameErr).Str("path", j.path).Msg("Failed to move corrupt snapshot aside")
		}
		j.logger.Warn().
			Err(err).
			Bool("persistence_warning", true).
			Str("path", j.path).
			Str("backup", backup).
			Msg("Corrupt memory snapshot, starting empty")
		return []memory.Record{}, nil
	}
	if records == nil {
		records = []memory.Record{}
	}

	j.logger.Debug().Str("path", j.path).Int("records", len(records)).Msg("Snapshot loaded")
	return records, nil
}

// Save overwrites the snapshot with records.
func (j *JSONFile) Save(ctx context.Context, records []memory.Record) error {
	if records == nil {
		records = []memory.Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if !j.atomicWrites {
		if err := os.WriteFile(j.path, data, 0600); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		return nil
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
