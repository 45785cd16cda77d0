package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbscribe/dbscribe/internal/docs"
)

var (
	documentTypes      []string
	documentSchemas    []string
	documentBatchSize  int
	documentNoAnalysis bool
	documentContinue   bool
	documentNoWait     bool
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Document database objects into the search index",
	Long: `Start a documentation batch on the server and watch its progress.

By default all object types in all schemas are documented with LLM
analysis. The batch keeps running on the server if you quit the
progress display with Ctrl+C.

Examples:
  dbscribe document
  dbscribe document --types table,view --schemas dbo
  dbscribe document --no-analysis --batch-size 100`,
	RunE: runDocument,
}

func init() {
	documentCmd.Flags().StringSliceVarP(&documentTypes, "types", "t", nil, "object types to document (table,view,procedure,function)")
	documentCmd.Flags().StringSliceVarP(&documentSchemas, "schemas", "s", nil, "restrict to these schemas")
	documentCmd.Flags().IntVar(&documentBatchSize, "batch-size", 50, "objects per processing chunk")
	documentCmd.Flags().BoolVar(&documentNoAnalysis, "no-analysis", false, "skip LLM analysis")
	documentCmd.Flags().BoolVar(&documentContinue, "continue-on-error", false, "keep going past per-object failures")
	documentCmd.Flags().BoolVar(&documentNoWait, "no-wait", false, "start the batch and return immediately")
}

func runDocument(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	for _, t := range documentTypes {
		if _, ok := docs.ParseObjectType(t); !ok {
			return fmt.Errorf("unsupported object type %q", t)
		}
	}

	opts := docs.BatchOptions{
		ObjectTypes:     documentTypes,
		Schemas:         documentSchemas,
		BatchSize:       documentBatchSize,
		IncludeAnalysis: !documentNoAnalysis,
		ContinueOnError: documentContinue,
	}

	progress, err := api.StartBatch(ctx, opts)
	if err != nil {
		return fmt.Errorf("start batch: %w", err)
	}

	if documentNoWait {
		fmt.Printf("Batch %s started. Use 'dbscribe progress' to watch it.\n", progress.BatchID)
		return nil
	}
	return RunBatchProgress(api)
}
