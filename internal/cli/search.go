package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit  int
	searchIntent bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the documentation index",
	Long: `Search stored documentation with natural language.

With --intent the server first interprets the query with the LLM and
filters results to the object type it names.

Examples:
  dbscribe search "customer orders"
  dbscribe search "stored procedures that touch invoices" --intent
  dbscribe search "audit" --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
	searchCmd.Flags().BoolVar(&searchIntent, "intent", false, "interpret the query with the LLM first")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	response, err := api.Search(ctx, args[0], searchLimit, searchIntent)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if response.Intent != nil && verbose {
		fmt.Printf("Interpreted as: %q (type=%s)\n\n", response.Intent.SearchQuery, response.Intent.ObjectType)
	}

	if len(response.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(response.Results))
	for i, r := range response.Results {
		objType, _ := r.Metadata["type"].(string)
		fmt.Printf("%d. %s [%s] (distance %.4f)\n", i+1, r.ID, objType, r.Distance)
		if verbose {
			fmt.Println(indent(r.Content, "   "))
		} else {
			fmt.Printf("   %s\n", firstLine(r.Content))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
