// Package main provides the bamcount command-line tool: sequencing-read
// coverage over genomic regions defined by interchangeable region models.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bamcount",
		Short:         "Count aligned reads over genomic region models",
		Long:          "bamcount overlaps BAM alignments against gene/exon annotations, fixed genome bins, BED intervals, or repeat catalogs and reports per-region counts.",
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.AddCommand(newCountCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig loads ~/.bamcount.yaml and BAMCOUNT_* environment variables as
// defaults for command flags.
func initConfig() error {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetConfigFile(filepath.Join(home, ".bamcount.yaml"))
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					if !os.IsNotExist(err) {
						return fmt.Errorf("reading config: %w", err)
					}
				}
			}
		}
	}
	viper.SetEnvPrefix("BAMCOUNT")
	viper.AutomaticEnv()
	return nil
}

// buildLogger returns a stderr logger; quiet raises the level to errors only.
func buildLogger(quiet bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	return cfg.Build()
}
