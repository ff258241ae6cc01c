package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/persistence"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics",
	Long: `Show how many memories are stored, per category and source, along with
the embedding provider and snapshot location.

With --watch the command keeps running and prints a summary every time the
snapshot file changes, e.g. while an MCP client is using the server.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolP("watch", "w", false, "print a summary whenever the snapshot changes")
	statsCmd.Flags().Duration("debounce", persistence.DefaultDebounce, "quiet period before reporting a change")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	return withApp(cmd.Context(), func(app *App) error {
		var result memory.MemoryStatsResult
		if err := app.callTool(cmd.Context(), "memory_stats", nil, &result); err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), &result, time.Now())

		if !watch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchStats(ctx, app, debounce, cmd.OutOrStdout())
	})
}

func printStats(out io.Writer, s *memory.MemoryStatsResult, now time.Time) {
	fmt.Fprintf(out, "Memories:  %d\n", s.Total)
	fmt.Fprintf(out, "Provider:  %s (%d dims)\n", s.Provider, s.Dimension)
	if s.SnapshotPath != "" {
		fmt.Fprintf(out, "Snapshot:  %s\n", s.SnapshotPath)
	}
	if s.Newest != nil {
		fmt.Fprintf(out, "Last write: %s ago\n", formatDuration(now.Sub(*s.Newest)))
	}

	for _, c := range memory.AllCategories() {
		if n := s.ByCategory[c]; n > 0 {
			fmt.Fprintf(out, "  %-8s %d\n", c, n)
		}
	}
	if s.AutoDetection.Corrections+s.AutoDetection.Preferences > 0 {
		fmt.Fprintf(out, "Detected:  %d corrections, %d preferences\n",
			s.AutoDetection.Corrections, s.AutoDetection.Preferences)
	}
}

// watchStats re-reads the snapshot on every change and prints a one-line
// summary. The running store is left untouched.
func watchStats(ctx context.Context, app *App, debounce time.Duration, out io.Writer) error {
	path := app.Snapshot.Path()
	changes := make(chan struct{}, 1)

	w, err := persistence.NewWatcher(path, debounce, app.Logger, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			records, err := app.Snapshot.Load(ctx)
			if err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to read snapshot")
				continue
			}
			fmt.Fprintln(out, summarizeRecords(records, time.Now()))
		}
	}
}

func summarizeRecords(records []memory.Record, now time.Time) string {
	counts := make(map[memory.Category]int)
	for _, r := range records {
		counts[r.Category]++
	}

	parts := make([]string, 0, len(counts))
	for _, c := range memory.AllCategories() {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", c, n))
		}
	}

	line := fmt.Sprintf("[%s] total %d", now.Format("15:04:05"), len(records))
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	return line
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
