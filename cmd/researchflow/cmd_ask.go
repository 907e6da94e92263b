package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/researchflow/pkg/research"
)

// defaultQuery is asked when no query is given.
const defaultQuery = "What is the latest news on COVID-19 vaccines?"

var askFlags struct {
	json bool
}

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Research a query and print the answer",
	Long: "Runs research, draft, and refine for the query and prints the final answer\n" +
		"with its sources. Without a query, asks: " + defaultQuery,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askFlags.json, "json", false, "Print the full result as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		query = defaultQuery
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	a, err := buildApp(s, slog.Default())
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.workflow.Run(cmd.Context(), query)

	out := cmd.OutOrStdout()
	if askFlags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(out, query, result)
	return nil
}

func printResult(w io.Writer, query string, r research.Result) {
	fmt.Fprintf(w, "Query: %s\n\n", query)
	fmt.Fprintf(w, "Final Response:\n%s\n", r.Response)
	if len(r.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for _, src := range r.Sources {
			fmt.Fprintf(w, "  [%d] %s: %s\n", src.Number, src.Title, src.URL)
		}
	}
	if r.Error != nil {
		fmt.Fprintf(w, "\nError: %s\n", *r.Error)
	}
	if id := r.RunID(); id != "" {
		fmt.Fprintf(w, "\nRun: %s\n", id)
	}
}
