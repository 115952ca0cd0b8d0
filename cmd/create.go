package cmd

import (
	"errors"
	"fmt"

	"packsync/db"
	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Creates a new modpack",
	Long: `Creates an empty modpack under the id given with --pack and records
an initial version so rollback always has a baseline.
Example: packsync --pack survival create "Survival 1.21"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		loader, _ := cmd.Flags().GetString("loader")
		loaderVersion, _ := cmd.Flags().GetString("loader-version")
		overrides, _ := cmd.Flags().GetString("overrides")
		runCreate(args[0], loader, loaderVersion, overrides)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("loader", "", "Mod loader (defaults to DEFAULT_LOADER)")
	createCmd.Flags().String("loader-version", "", "Mod loader version")
	createCmd.Flags().String("overrides", "", "Directory of config overrides to copy on sync")
}

func runCreate(name, loader, loaderVersion, overrides string) {
	a := bootstrap()

	if _, err := a.store.GetModpack(packFlag); err == nil {
		log.Fatalf("Modpack %q already exists", packFlag)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalw("Failed to query modpack", zap.Error(err))
	}

	if loader == "" {
		loader = a.cfg.DefaultLoader
	}

	pack := &db.Modpack{
		PackID:        packFlag,
		Name:          name,
		Loader:        loader,
		LoaderVersion: loaderVersion,
		GameVersion:   a.cfg.GameVersion,
		OverridesPath: overrides,
	}
	if err := a.store.CreateModpack(pack); err != nil {
		log.Fatalw("Failed to create modpack", zap.Error(err))
	}

	if _, err := a.engine.Initialize(pack.PackID, "Initial version"); err != nil {
		log.Warnw("Failed to record initial version", zap.Error(err))
	}

	fmt.Printf("%s modpack %s (%s)\n", ui.Good("Created"), ui.Bold(name), packFlag)
}
