package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reproject-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reproject-cli",
	Short: "Reproject vector datasets into their best-fitting UTM zone",
	Long:  "Finds the UTM zone holding most feature centroids, reprojects GeoJSON and shapefile datasets into it and repairs geometries the projection left invalid.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		applyLogFlags(cmd, &cfg.Log)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

var (
	logLevel  string
	logFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log.format (console or json)")
}

// applyLogFlags lets the persistent log flags win over the config file and
// REPROJECT_LOG_* variables.
func applyLogFlags(cmd *cobra.Command, l *config.LogConfig) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		l.Level = logLevel
	}
	if flags.Changed("log-format") {
		l.Format = logFormat
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
