package correction

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_DetectCorrection(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		preferred  string
		deprecated string
	}{
		{"actually", "No, actually use uv not pip.", "uv", "pip"},
		{"use not", "Use pnpm not npm for this repo", "pnpm", "npm"},
		{"instead of", "please use ruff instead of flake8", "ruff", "flake8"},
		{"prefer over", "I prefer rebase over merge", "rebase", "merge"},
		{"dont use", "Don't use pip, use uv", "uv", "pip"},
		{"always use for", "always use poetry for libraries", "poetry", "libraries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			c, ok := d.DetectCorrection(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.preferred, c.Preferred)
			assert.Equal(t, tt.deprecated, c.Deprecated)
			assert.NotEmpty(t, c.Match)
		})
	}
}

func TestDetector_DetectCorrection_NoMatch(t *testing.T) {
	d := NewDetector()

	for _, text := range []string{
		"",
		"The build is green",
		"because pip not found",
		"we used pip yesterday",
	} {
		_, ok := d.DetectCorrection(text)
		assert.False(t, ok, text)
	}
	assert.Equal(t, int64(0), d.Stats().Corrections)
}

func TestCorrection_Statement(t *testing.T) {
	assert.Equal(t, "Use uv instead of pip", Correction{Preferred: "uv", Deprecated: "pip"}.Statement())
	assert.Equal(t, "Use uv", Correction{Preferred: "uv"}.Statement())
}

func TestDetector_DetectPreference(t *testing.T) {
	d := NewDetector()

	p, ok := d.DetectPreference("always run tests before commit")
	require.True(t, ok)
	assert.Equal(t, "Always run tests before commit", p.Preference)

	p, ok = d.DetectPreference("You must sign commits.")
	require.True(t, ok)
	assert.Equal(t, "Must sign commits", p.Preference)

	p, ok = d.DetectPreference("I like to keep functions small")
	require.True(t, ok)
	assert.Equal(t, "Like to keep functions small", p.Preference)

	_, ok = d.DetectPreference("mustard is yellow")
	assert.False(t, ok)

	assert.Equal(t, int64(3), d.Stats().Preferences)
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Use uv not pip", "python"},
		{"squash commits before merge", "git"},
		{"use alpine for the docker image", "docker"},
		{"use pnpm not npm", "general"},
		{"always write tests", "general"},
		{"keep functions small", "general"},
		{"pipeline", "general"},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, d.DetectCategory(tt.text))
		})
	}
}

func TestKeywords(t *testing.T) {
	kw := Keywords()
	assert.Contains(t, kw["python"], "uv")
	assert.Contains(t, kw["git"], "rebase")
	assert.Contains(t, kw["docker"], "container")
	assert.Contains(t, kw["general"], "npm")
	assert.Contains(t, kw["general"], "tests")
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"use", "c++", "not", "c#"}, Tokenize("Use C++, not C#!"))
	assert.Equal(t, []string{"node.js", "rocks"}, Tokenize("node.js rocks."))
	assert.Empty(t, Tokenize("  ...  "))
}

func TestDetector_ConcurrentStats(t *testing.T) {
	d := NewDetector()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DetectCorrection("use uv not pip")
		}()
	}
	wg.Wait()

	stats := d.Stats()
	assert.Equal(t, int64(20), stats.Corrections)
	assert.Equal(t, len(correctionPatterns)+len(preferencePatterns), stats.Patterns)
}
