package memory

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testDimension = 16

// conceptEmbedder maps related words onto shared axes so that semantic
// neighbours score above unrelated text.
type conceptEmbedder struct {
	calls atomic.Int64
	fail  atomic.Bool
	delay time.Duration
}

var testConcepts = map[string]int{
	"python": 0, "pip": 0, "uv": 0, "poetry": 0, "package": 0, "manager": 0, "pytest": 0,
	"git": 1, "commit": 1, "commits": 1, "branch": 1, "rebase": 1, "conventional": 1,
	"docker": 2, "container": 2, "image": 2, "compose": 2, "alpine": 2,
	"tabs": 3, "spaces": 3, "indent": 3, "indentation": 3,
}

func (e *conceptEmbedder) Dimension() int { return testDimension }

func (e *conceptEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.fail.Load() {
		return nil, errors.New("model unavailable")
	}

	vec := make([]float32, testDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?'\"")
		if word == "" {
			continue
		}
		if axis, ok := testConcepts[word]; ok {
			vec[axis] += 1
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[4+int(h.Sum32()%uint32(testDimension-4))] += 0.25
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

// memorySnapshotter keeps the last saved collection in memory.
type memorySnapshotter struct {
	mu       sync.Mutex
	records  []Record
	saves    int
	loadErr  error
	saveErr  error
	snapPath string
}

func (m *memorySnapshotter) Load(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *memorySnapshotter) Save(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = records
	return nil
}

func (m *memorySnapshotter) Path() string {
	if m.snapPath == "" {
		return "memory://test"
	}
	return m.snapPath
}

func (m *memorySnapshotter) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *memorySnapshotter) saved() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records
}

// fixedClock returns timestamps one second apart.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestStore(t *testing.T) (*Store, *conceptEmbedder, *memorySnapshotter) {
	t.Helper()
	embedder := &conceptEmbedder{}
	snap := &memorySnapshotter{}
	store, err := NewStore(context.Background(), Config{
		Embedder:    embedder,
		Snapshotter: snap,
		Logger:      zerolog.Nop(),
		Now:         fixedClock(),
	})
	require.NoError(t, err)
	return store, embedder, snap
}

func mustStore(t *testing.T, s *Store, content string, category Category, importance int) Record {
	t.Helper()
	rec, err := s.Store(context.Background(), content, category, importance)
	require.NoError(t, err)
	return rec
}

func intPtr(v int) *int { return &v }
