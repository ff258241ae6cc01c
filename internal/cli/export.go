package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export memories as Markdown grouped by category",
	Long: `Write every stored preference as a Markdown document, one section per
category, most important first. The result can be checked in as a
CONVENTIONS.md or pasted into an assistant's instructions.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringP("out", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	outPath, _ := cmd.Flags().GetString("out")

	return withApp(cmd.Context(), func(app *App) error {
		var buf bytes.Buffer
		if err := exportMarkdown(&buf, app.Store, time.Now()); err != nil {
			return err
		}

		if outPath == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d memories to %s\n", app.Store.Count(nil), outPath)
		return nil
	})
}

// exportMarkdown renders the store grouped by category, each group in List
// order. Empty categories are omitted.
func exportMarkdown(w io.Writer, store *memory.Store, now time.Time) error {
	fmt.Fprintf(w, "# Coding standards\n\n")
	fmt.Fprintf(w, "_Exported by mcp-standards on %s._\n", now.Format("2006-01-02"))

	total := store.Count(nil)
	if total == 0 {
		fmt.Fprintf(w, "\nNo preferences recorded yet.\n")
		return nil
	}

	for _, category := range memory.AllCategories() {
		c := category
		records, _, err := store.List(memory.ListOptions{Category: &c, Limit: total})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n## %s\n\n", category)
		for _, r := range records {
			fmt.Fprintf(w, "- %s", r.Content)
			if r.Importance != memory.DefaultImportance {
				fmt.Fprintf(w, " _(importance %d)_", r.Importance)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
