package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var log *zap.SugaredLogger

// packFlag selects the modpack a command operates on.
var packFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "packsync",
	Short: "Keeps modpack instances in sync with their declared state",
	Long: `packsync manages modpacks as declared metadata and reconciles
game instances against them: full syncs, instant single-mod changes,
and a version history with rollback.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(l *zap.SugaredLogger) {
	log = l
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&packFlag, "pack", "p", "default", "Modpack id to operate on")
}
