package cmd

import (
	"context"
	"fmt"

	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove [modID]",
	Short: "Removes a mod from the pack and the linked instance",
	Long: `Removes the mod from the pack's declared set and deletes its file
from the linked instance. The library record is kept so version history
can still restore it.
Example: packsync remove cf-238222-4711`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runRemove(args[0])
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(modID string) {
	a := bootstrap()
	pack := a.mustPack()

	if !pack.ModIDs.Contains(modID) {
		log.Fatalf("Mod %s is not in pack %q", modID, pack.PackID)
	}

	if err := a.coordinator.RemoveMod(context.Background(), pack.PackID, modID); err != nil {
		log.Fatalw("Failed to remove mod", zap.String("mod_id", modID), zap.Error(err))
	}
	fmt.Printf("%s %s\n", ui.Good("Removed"), modID)
}
