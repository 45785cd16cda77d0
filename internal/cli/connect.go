package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dbscribe/dbscribe/internal/client"
)

var (
	connectServer   string
	connectDatabase string
	connectUser     string
	connectTrusted  bool
	connectSaved    bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the server to a SQL Server database",
	Long: `Connect the dbscribe server to a SQL Server database.

With --trusted, Windows integrated authentication is used and no
credentials are needed. Otherwise the password is read from the
DBSCRIBE_SQL_PASSWORD env var or prompted for interactively.

Examples:
  dbscribe connect --server localhost --database AdventureWorks --trusted
  dbscribe connect --server db.example.com --database Sales --user reader
  dbscribe connect --saved`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectServer, "server", "", "SQL Server host")
	connectCmd.Flags().StringVar(&connectDatabase, "database", "", "database name")
	connectCmd.Flags().StringVar(&connectUser, "user", "", "SQL login name")
	connectCmd.Flags().BoolVar(&connectTrusted, "trusted", false, "use Windows integrated authentication")
	connectCmd.Flags().BoolVar(&connectSaved, "saved", false, "reuse the last saved connection settings")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	req := client.ConnectRequest{
		Server:   connectServer,
		Database: connectDatabase,
		User:     connectUser,
		Trusted:  connectTrusted,
	}

	if connectSaved {
		saved, err := api.SavedConnection(ctx)
		if err != nil {
			return fmt.Errorf("load saved connection: %w", err)
		}
		if req.Server == "" {
			req.Server = saved.Server
		}
		if req.Database == "" {
			req.Database = saved.Database
		}
		if req.User == "" {
			req.User = saved.User
		}
		if !cmd.Flags().Changed("trusted") {
			req.Trusted = saved.Trusted
		}
	}

	if req.Server == "" || req.Database == "" {
		return fmt.Errorf("--server and --database are required (or use --saved)")
	}

	if !req.Trusted && req.User != "" {
		password := os.Getenv("DBSCRIBE_SQL_PASSWORD")
		if password == "" {
			fmt.Fprintf(os.Stderr, "Password for %s: ", req.User)
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = string(raw)
		}
		req.Password = password
	}

	status, err := api.Connect(ctx, req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if !status.Connected {
		return fmt.Errorf("connection failed: %s", status.Error)
	}

	fmt.Printf("Connected to %s on %s\n", req.Database, req.Server)
	if verbose {
		fmt.Printf("  %s\n", status.DatabaseVersion)
	}
	if status.LLMStatus != "ok" {
		fmt.Printf("Warning: LLM provider unavailable (%s); documentation will run without analysis\n", status.LLMStatus)
	}
	return nil
}
