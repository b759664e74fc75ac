package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dbClient.InitSchema(cmd.Context()); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
		fmt.Println("Schema initialized.")
		return nil
	},
}

var wipeForce bool

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all data (development only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !wipeForce {
			fmt.Printf("This deletes ALL turns, sessions, and leaderboard entries in %s/%s.\nType 'yes' to continue: ",
				cfg.SurrealDBNamespace, cfg.SurrealDBDatabase)
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if strings.TrimSpace(line) != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}
		if err := dbClient.WipeData(cmd.Context()); err != nil {
			return fmt.Errorf("wipe data: %w", err)
		}
		fmt.Println("All data deleted.")
		return nil
	},
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "skip confirmation prompt")
}
