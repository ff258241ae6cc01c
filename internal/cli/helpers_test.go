package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// testEnv points the data directory at a temp dir and returns the --config
// path, which does not exist so defaults and env overrides apply.
func testEnv(t *testing.T) (configPath, dataDir string) {
	t.Helper()

	root := t.TempDir()
	dataDir = filepath.Join(root, "data")
	t.Setenv("HOME", root)
	t.Setenv("MCP_STANDARDS_DATA_DIR", dataDir)
	t.Setenv("MCP_STANDARDS_EMBEDDING_DIMENSION", "64")

	configPath = filepath.Join(root, "config.json")
	return configPath, dataDir
}

// runCLI executes the root command with fresh flag values.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := GetRootCmd()
	resetFlags(cmd)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// useConfig sets the --config value for tests that build an App directly.
func useConfig(t *testing.T, path string) {
	t.Helper()
	resetFlags(GetRootCmd())
	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	configPath, _ := testEnv(t)
	useConfig(t, configPath)

	app, err := newApp(context.Background(), appOptions{})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func idFromRememberOutput(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "id: ") {
			return strings.TrimPrefix(line, "id: ")
		}
	}
	t.Fatalf("no id in output: %q", out)
	return ""
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
