package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbscribe/dbscribe/internal/docs"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <schema> <name> <type>",
	Short: "Show an object's documentation without the LLM analysis",
	Long: `Show the stored documentation for one object with the analysis
section stripped.

Examples:
  dbscribe summary dbo Customers table
  dbscribe summary sales GetInvoice procedure`,
	Args: cobra.ExactArgs(3),
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	schema, name, objType := args[0], args[1], args[2]
	if _, ok := docs.ParseObjectType(objType); !ok {
		return fmt.Errorf("unsupported object type %q", objType)
	}

	summary, err := api.Summary(context.Background(), schema, name, objType)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	fmt.Println(summary)
	return nil
}

var relatedCmd = &cobra.Command{
	Use:   "related <schema> <name>",
	Short: "Show objects documented most similarly to the given one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := api.Related(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("related: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No related objects found.")
			return nil
		}
		for i, r := range results {
			objType, _ := r.Metadata["type"].(string)
			fmt.Printf("%d. %s [%s] (distance %.4f)\n", i+1, r.ID, objType, r.Distance)
		}
		return nil
	},
}
