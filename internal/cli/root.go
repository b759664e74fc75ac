// Package cli provides the command-line interface for the Atomic backend.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atomicedu/atomic-backend/internal/config"
	"github.com/atomicedu/atomic-backend/internal/db"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string
	authToken string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client
)

// dbCommands are the subcommands that talk to SurrealDB directly instead of
// going through a running server.
var dbCommands = map[string]bool{
	"serve": true,
	"init":  true,
	"wipe":  true,
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "atomic",
	Short: "AI chemistry tutor backend",
	Long: `Atomic is an AI chemistry tutor backend: a chat turn pipeline backed by
SurrealDB with quiz scoring, image text extraction, and translation.

Run the API server with 'atomic serve', or talk to a running server with
'atomic chat'.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if !dbCommands[cmd.Name()] {
			return nil
		}

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		dbClient, err = db.NewClient(ctx, dbCfg, nil)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default localhost:8585)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("ATOMIC_TOKEN"), "bearer token for server commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(wipeCmd)
}
