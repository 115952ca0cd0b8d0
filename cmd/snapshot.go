package cmd

import (
	"errors"
	"fmt"

	"packsync/syncer"
	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Records the pack's current mod set as a new version",
	Long: `Records the pack's declared mods, files and loader as a version
that rollback can later restore. When nothing changed since the latest
version no new one is created unless --force is given.`,
	Run: func(cmd *cobra.Command, _ []string) {
		message, _ := cmd.Flags().GetString("message")
		tag, _ := cmd.Flags().GetString("tag")
		force, _ := cmd.Flags().GetBool("force")
		runSnapshot(message, tag, force)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringP("message", "m", "", "Description of the version")
	snapshotCmd.Flags().String("tag", "", "Optional tag, e.g. a release name")
	snapshotCmd.Flags().BoolP("force", "f", false, "Create a version even when nothing changed")
}

func runSnapshot(message, tag string, force bool) {
	a := bootstrap()
	pack := a.mustPack()

	before, err := a.store.LatestVersion(pack.PackID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalw("Failed to query version history", zap.Error(err))
	}

	v, err := a.engine.CreateVersion(pack.PackID, message, tag, hasConfigChanges(a, pack.PackID), force)
	if err != nil {
		log.Fatalw("Failed to create version", zap.Error(err))
	}

	if before != nil && v.VersionID == before.VersionID {
		fmt.Println(ui.Warn("Nothing changed since the latest version; no version created."))
		return
	}
	fmt.Printf("%s version %s with %d mods\n", ui.Good("Recorded"), ui.Bold(v.VersionID), len(v.ModIDs))
}

// hasConfigChanges reports whether the instance's override files drifted
// from the pack's, so a snapshot is taken even when the mod set is stable.
func hasConfigChanges(a *app, packID string) bool {
	pack, err := a.store.GetModpack(packID)
	if err != nil || pack.OverridesPath == "" {
		return false
	}
	inst, err := a.store.GetInstanceForModpack(packID)
	if err != nil {
		return false
	}
	status := a.reconciler.CheckSyncStatus(syncer.StatusInput{
		InstancePath:  inst.Path,
		OverridesPath: pack.OverridesPath,
	})
	return len(status.ConfigDifferences) > 0
}
