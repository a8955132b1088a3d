package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/storykeep-backend/internal/app"
)

var jsonOutput bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "storyctl",
		Short: "Operate a storykeep deployment",
		Long: `storyctl runs maintenance against the configured database:
schema migration, search reindexing, wallet grants and reconciliation.
It reads the same CONFIG_FILE and environment as the server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(
		newMigrateCmd(),
		newReindexCmd(),
		newSearchCmd(),
		newWalletCmd(),
		newAnalyticsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openApp builds the app without starting background loops or the server.
func openApp() (*app.App, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.LogMode == "development" {
		cfg.LogMode = "test"
	}
	return app.NewWithConfig(cfg)
}

// withApp opens the app for the duration of fn.
func withApp(fn func(a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// emit prints v as JSON under --json, otherwise calls human.
func emit(v interface{}, human func()) {
	if jsonOutput {
		printJSON(v)
		return
	}
	human()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and search indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				emit(map[string]any{"ok": true, "driver": a.Cfg.DBDriver, "backend": a.Services.Search.Backend()}, func() {
					fmt.Printf("migrated %s (search backend: %s)\n", a.Cfg.DBDriver, a.Services.Search.Backend())
				})
				return nil
			})
		},
	}
}
