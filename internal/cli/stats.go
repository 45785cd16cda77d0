package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbscribe/dbscribe/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many objects are documented per type",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := api.VectorStatus(context.Background())
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		fmt.Println("Documented objects:")
		fmt.Printf("  Tables:     %d\n", stats.Table)
		fmt.Printf("  Views:      %d\n", stats.View)
		fmt.Printf("  Procedures: %d\n", stats.Procedure)
		fmt.Printf("  Functions:  %d\n", stats.Function)
		total := stats.Table + stats.View + stats.Procedure + stats.Function
		fmt.Printf("  Total:      %d\n", total)
		return nil
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored documentation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			fmt.Print("Delete all stored documentation? [y/N] ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}
		if err := api.ClearVectorStore(context.Background()); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Println("Documentation cleared.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server connection and batch state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := api.Health(ctx); err != nil {
			return err
		}
		status, err := api.Status(ctx)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if !status.Connected {
			fmt.Println("Server is up; not connected to a database. Use 'dbscribe connect'.")
			return nil
		}
		fmt.Printf("Connected to %s\n", status.Database)
		if status.BatchRunning {
			fmt.Println("A documentation batch is running. Use 'dbscribe progress' to watch it.")
		}
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show server operation metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := api.Metrics(context.Background())
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		fmt.Printf("Uptime: %.0fs\n", snapshot.UptimeSeconds)
		printed := false
		ops := []struct {
			name string
			op   *metrics.OperationSnapshot
		}{
			{"metadata_query", snapshot.MetadataQuery},
			{"llm_analyze", snapshot.LLMAnalyze},
			{"embedding", snapshot.Embedding},
			{"index_upsert", snapshot.IndexUpsert},
			{"index_search", snapshot.IndexSearch},
		}
		for _, entry := range ops {
			if entry.op == nil {
				continue
			}
			printed = true
			fmt.Printf("%s:\n", entry.name)
			fmt.Printf("  count:    %d\n", entry.op.Count)
			fmt.Printf("  avg:      %.1fms\n", entry.op.AvgTimeMs)
			fmt.Printf("  total:    %dms\n", entry.op.TotalTimeMs)
			if entry.op.InputTokens != nil {
				fmt.Printf("  tokens:   %d in / %d out\n", *entry.op.InputTokens, *entry.op.OutputTokens)
			}
		}
		if !printed {
			fmt.Println("No operations recorded yet.")
		}
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
}
