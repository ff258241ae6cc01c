package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/airmcp-com/mcp-standards-sub000/internal/tracing"
	"github.com/airmcp-com/mcp-standards-sub000/pkg/memory"
	"github.com/spf13/cobra"
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a preference or correction",
	Long: `Store a preference or correction in semantic memory.

  mcp-standards remember "use uv not pip" --category python --importance 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemember,
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search stored preferences by meaning",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecall,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored preferences, most important first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one stored preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a stored preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored preference",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var learnCmd = &cobra.Command{
	Use:   "learn <text>",
	Short: "Detect and remember a correction or preference in free text",
	Long: `Scan free text for a correction ("use X not Y", "prefer X over Y") or a
standing preference ("always X before Y") and remember what is found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLearn,
}

func init() {
	rememberCmd.Flags().StringP("category", "c", "", "category: "+strings.Join(memory.CategoryNames(), ", "))
	rememberCmd.Flags().IntP("importance", "i", memory.DefaultImportance, "importance from 1 to 10")

	recallCmd.Flags().StringP("category", "c", "", "only search one category")
	recallCmd.Flags().IntP("limit", "n", memory.DefaultSearchLimit, "maximum number of results")
	recallCmd.Flags().Float64("min-score", 0, "minimum cosine similarity")

	listCmd.Flags().StringP("category", "c", "", "only list one category")
	listCmd.Flags().IntP("limit", "n", memory.DefaultListLimit, "page size")
	listCmd.Flags().Int("offset", 0, "number of records to skip")

	clearCmd.Flags().Bool("yes", false, "confirm deleting every memory")

	learnCmd.Flags().IntP("importance", "i", memory.DefaultImportance, "importance assigned to a detected preference")

	rootCmd.AddCommand(rememberCmd, recallCmd, listCmd, getCmd, forgetCmd, clearCmd, learnCmd)
}

func runRemember(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	importance, _ := cmd.Flags().GetInt("importance")

	params := map[string]interface{}{
		"content":    strings.Join(args, " "),
		"importance": importance,
	}
	if category != "" {
		params["category"] = category
	}

	return withApp(cmd.Context(), func(app *App) error {
		var result memory.RememberResult
		if err := app.callTool(cmd.Context(), "remember", params, &result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\nid: %s\n", result.Message, result.ID)
		return nil
	})
}

func runRecall(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	minScore, _ := cmd.Flags().GetFloat64("min-score")

	params := map[string]interface{}{
		"query":     strings.Join(args, " "),
		"limit":     limit,
		"min_score": minScore,
	}
	if category != "" {
		params["category"] = category
	}

	return withApp(cmd.Context(), func(app *App) error {
		var result memory.RecallResult
		if err := app.callTool(cmd.Context(), "recall", params, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.Count == 0 {
			fmt.Fprintln(out, "No matching memories.")
			return nil
		}
		for i, item := range result.Results {
			fmt.Fprintf(out, "%d. [%s] %s (importance %d, score %.3f)\n",
				i+1, item.Category, item.Content, item.Importance, item.Score)
		}
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	params := map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}
	if category != "" {
		params["category"] = category
	}

	return withApp(cmd.Context(), func(app *App) error {
		var result memory.ListMemoriesResult
		if err := app.callTool(cmd.Context(), "list_memories", params, &result); err != nil {
			return err
		}
		printList(cmd.OutOrStdout(), &result)
		return nil
	})
}

func printList(out io.Writer, result *memory.ListMemoriesResult) {
	if len(result.Memories) == 0 {
		fmt.Fprintf(out, "No memories (total %d).\n", result.Total)
		return
	}
	for _, m := range result.Memories {
		fmt.Fprintf(out, "%s  [%s] (%d) %s\n", m.ID, m.Category, m.Importance, m.Content)
	}
	fmt.Fprintf(out, "Showing %d-%d of %d\n",
		result.Offset+1, result.Offset+len(result.Memories), result.Total)
}

func runGet(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		var result memory.GetMemoryResult
		if err := app.callTool(cmd.Context(), "get_memory", map[string]interface{}{"id": args[0]}, &result); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

func runForget(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		var result memory.ForgetResult
		if err := app.callTool(cmd.Context(), "forget", map[string]interface{}{"id": args[0]}, &result); err != nil {
			return err
		}
		if result.Deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", result.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "No memory with id %s\n", result.ID)
		}
		return nil
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")

	return withApp(cmd.Context(), func(app *App) error {
		total := app.Store.Count(nil)
		if !yes {
			return fmt.Errorf("refusing to delete %d memories without --yes", total)
		}

		ctx := tracing.NewRequestContext(cmd.Context(), transportCLI, transportCLI)
		app.Store.Clear(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d memories\n", total)
		return nil
	})
}

func runLearn(cmd *cobra.Command, args []string) error {
	importance, _ := cmd.Flags().GetInt("importance")
	params := map[string]interface{}{
		"text":       strings.Join(args, " "),
		"importance": importance,
	}

	return withApp(cmd.Context(), func(app *App) error {
		var result memory.LearnResult
		if err := app.callTool(cmd.Context(), "learn_from_text", params, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !result.Detected {
			fmt.Fprintln(out, "No correction or preference detected.")
			return nil
		}
		fmt.Fprintf(out, "Detected %s: %s\n", result.Kind, result.Memory.Content)
		fmt.Fprintf(out, "Stored in %s as %s\n", result.Memory.Category, result.Memory.ID)
		return nil
	})
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
