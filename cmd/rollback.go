package cmd

import (
	"context"
	"fmt"
	"sync"

	"packsync/syncer"
	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback [versionID]",
	Short: "Restores the pack to a recorded version",
	Long: `Restores the pack's mod set, loader and config overrides to the
given version. Mods that drifted or disappeared are re-downloaded from
the registry; mods that cannot be re-acquired are reported and skipped.
History is kept, so the rollback itself can be rolled back.
Example: packsync rollback ver-1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runRollback(args[0])
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(versionID string) {
	a := bootstrap()
	pack := a.mustPack()

	reporter := syncer.NewReporter(100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range reporter.Events() {
			fmt.Printf("  [%d/%d] %s\n", event.Current, event.Total, event.Item)
		}
	}()

	result, err := a.engine.Rollback(context.Background(), pack.PackID, versionID, reporter)
	reporter.Close()
	wg.Wait()
	if err != nil {
		log.Fatalw("Rollback failed", zap.String("version_id", versionID), zap.Error(err))
	}

	for _, failed := range result.FailedMods {
		fmt.Printf("%s %s: %s\n", ui.Bad("Could not restore"), failed.ModID, failed.Reason)
	}
	if result.LoaderRestored {
		fmt.Println("Loader restored to the version's record.")
	}

	if result.Success {
		fmt.Printf("%s %d mods re-acquired, %d total.\n",
			ui.Good("Rollback complete."), result.RestoredCount, result.TotalMods)
	} else {
		fmt.Printf("%s %d of %d mods could not be restored.\n",
			ui.Warn("Rollback finished with gaps."), result.FailedCount, result.TotalMods)
	}
}
