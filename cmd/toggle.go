package cmd

import (
	"context"
	"fmt"

	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// enableCmd represents the enable command
var enableCmd = &cobra.Command{
	Use:   "enable [modID]",
	Short: "Enables a disabled mod",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		setEnabled(args[0], true)
	},
}

// disableCmd represents the disable command
var disableCmd = &cobra.Command{
	Use:   "disable [modID]",
	Short: "Disables a mod without removing it",
	Long: `Marks the mod disabled and renames its file on the linked instance
so the game ignores it. The file itself is kept byte for byte.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		setEnabled(args[0], false)
	},
}

// toggleCmd represents the toggle command
var toggleCmd = &cobra.Command{
	Use:   "toggle [modID]",
	Short: "Flips a mod between enabled and disabled",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runToggle(args[0])
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(toggleCmd)
}

func setEnabled(modID string, enabled bool) {
	a := bootstrap()
	pack := a.mustPack()

	if !pack.ModIDs.Contains(modID) {
		log.Fatalf("Mod %s is not in pack %q", modID, pack.PackID)
	}

	if err := a.coordinator.SetModEnabled(context.Background(), pack.PackID, modID, enabled); err != nil {
		log.Fatalw("Failed to change mod state", zap.String("mod_id", modID), zap.Error(err))
	}
	if enabled {
		fmt.Printf("%s %s\n", ui.Good("Enabled"), modID)
	} else {
		fmt.Printf("%s %s\n", ui.Warn("Disabled"), modID)
	}
}

func runToggle(modID string) {
	a := bootstrap()
	pack := a.mustPack()

	if !pack.ModIDs.Contains(modID) {
		log.Fatalf("Mod %s is not in pack %q", modID, pack.PackID)
	}

	if err := a.coordinator.ToggleMod(context.Background(), pack.PackID, modID); err != nil {
		log.Fatalw("Failed to toggle mod", zap.String("mod_id", modID), zap.Error(err))
	}

	pack = a.mustPack()
	if pack.IsModDisabled(modID) {
		fmt.Printf("%s %s\n", ui.Warn("Disabled"), modID)
	} else {
		fmt.Printf("%s %s\n", ui.Good("Enabled"), modID)
	}
}
