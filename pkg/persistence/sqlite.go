package persistence

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Registers vec_* functions on every new connection.
	sqlite_vec.Auto()
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS memories (
		position INTEGER NOT NULL,
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		importance INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		embedding BLOB NOT NULL,
		source TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_memories_position ON memories(position);
`

// SQLite keeps the collection in a SQLite database.
type SQLite struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string, logger zerolog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available: %w", err)
	}

	logger.Debug().Str("path", path).Str("sqlite_vec", version).Msg("SQLite snapshot opened")

	return &SQLite{db: db, path: path, logger: logger}, nil
}

// Path returns the database location.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load reads every record in insertion order.
func (s *SQLite) Load(ctx context.Context) ([]memory.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, importance, created_at, embedding, vec_length(embedding), source, context
		FROM memories
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	records := []memory.Record{}
	for rows.Next() {
		var (
			rec       memory.Record
			category  string
			createdAt string
			blob      []byte
			length    int
			source    string
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &category, &rec.Importance, &createdAt, &blob, &length, &source, &rec.Metadata.Context); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}

		rec.Category = memory.Category(category)
		rec.Metadata.Source = memory.Source(source)
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("memory %s has invalid timestamp %q: %w", rec.ID, createdAt, err)
		}
		rec.Embedding, err = deserializeFloat32(blob)
		if err != nil {
			return nil, fmt.Errorf("memory %s: %w", rec.ID, err)
		}
		if len(rec.Embedding) != length {
			return nil, fmt.Errorf("memory %s: decoded %d values, vec_length reports %d", rec.ID, len(rec.Embedding), length)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}

	return records, nil
}

// Save replaces every row with records in a single transaction.
func (s *SQLite) Save(ctx context.Context, records []memory.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM memories"); err != nil {
		return fmt.Errorf("failed to clear memories: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memories (position, id, content, category, importance, created_at, embedding, source, context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		blob, err := sqlite_vec.SerializeFloat32(rec.Embedding)
		if err != nil {
			return fmt.Errorf("failed to serialize embedding for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			i,
			rec.ID,
			rec.Content,
			string(rec.Category),
			rec.Importance,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			blob,
			string(rec.Metadata.Source),
			rec.Metadata.Context,
		); err != nil {
			return fmt.Errorf("failed to insert memory %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit memories: %w", err)
	}
	return nil
}

// deserializeFloat32 is the inverse of sqlite_vec.SerializeFloat32.
func deserializeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
