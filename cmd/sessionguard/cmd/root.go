package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rccm-quiz/sessionguard/internal/config"
)

var (
	configPath string
	envFiles   []string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sessionguard",
	Short: "Session timeout monitor for the RCCM quiz",
	Long: `sessionguard keeps an eye on the quiz session: it warns before the
session runs out, extends it on activity, and saves and restores progress.

"watch" runs the terminal monitor, "serve" runs the session backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = c
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to the YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
}
