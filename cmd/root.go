package cmd

import (
	"context"
	"os"

	"github.com/jinkaiteo/edms"
	"github.com/jinkaiteo/edms/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "edms",
	Short: "controlled document lifecycle tool",
	Example: `edms context set -u alice
edms doc create -t SOP --title "Line clearance"
edms submit -d <doc-id> --reviewer bob
edms approve -d <doc-id> --approved --comment ok --effective-date 2025-04-01
edms dep link -s <source-id> -t <target-id>
edms sweep`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}

// openClient loads the config, sets up logging and opens the database.
func openClient(ctx context.Context) (*edms.Client, *config.Config, bool) {
	cfg := config.LoadConfig()
	config.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	client, err := edms.Open(ctx, cfg)
	if err != nil {
		logrus.Error(err)
		return nil, nil, false
	}
	return client, cfg, true
}

func closeClient(client *edms.Client) {
	if err := client.Close(); err != nil {
		logrus.Errorf("error closing client: %v", err)
	}
}
