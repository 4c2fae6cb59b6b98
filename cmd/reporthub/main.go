// Command reporthub runs the ReportHub daily-report dashboard and its
// maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avissapr/reporthub/internal/config"
	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reporthub",
	Short: "Daily department reports and management directives",
	Long: `ReportHub collects one daily report per department, tracks management
directives, and shows today's completion on a dashboard.

Configuration comes from environment variables (DATABASE_URL, PORT, ...)
and the optional YAML file named by REPORTHUB_CONFIG.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(hashCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *security.Logger, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := security.NewLogger()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, database.Config{
		URL:      cfg.Database.URL,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, logger.Zerolog("database"))
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, pool, nil
}
