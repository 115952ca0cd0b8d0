package cmd

import (
	"context"
	"errors"
	"time"

	"packsync/db"
	"packsync/syncer"
	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconciles the linked instance with the pack's declared state",
	Long: `Makes the linked instance directory match the modpack's declared
mod set: downloads missing files, fixes enabled/disabled state and copies
config overrides. With --clear, undeclared mod files are removed first.`,
	Run: func(cmd *cobra.Command, _ []string) {
		clearFlag, _ := cmd.Flags().GetBool("clear")
		configMode, _ := cmd.Flags().GetString("config-mode")
		runSync(clearFlag, configMode)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().Bool("clear", false, "Remove undeclared mod files before syncing")
	syncCmd.Flags().String("config-mode", syncer.ConfigOverwrite, "Override copy mode: overwrite, new_only or skip")
}

func runSync(clearExisting bool, configMode string) {
	switch configMode {
	case syncer.ConfigOverwrite, syncer.ConfigNewOnly, syncer.ConfigSkip:
	default:
		log.Fatalf("Unknown config mode %q", configMode)
	}

	a := bootstrap()
	pack := a.mustPack()

	inst, err := a.store.GetInstanceForModpack(pack.PackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("Modpack %q has no linked instance. Link one with 'packsync link'.", pack.PackID)
		}
		log.Fatalw("Failed to look up linked instance", zap.Error(err))
	}
	if inst.State == db.InstanceInstalling {
		log.Fatal("Instance is already mid-install; refusing to start a second sync.")
	}

	desired, warnings := desiredState(a.store, pack)
	for _, w := range warnings {
		log.Warn(w)
	}

	opts := syncer.Options{
		ClearExisting: clearExisting,
		ConfigSync:    configMode,
		LockedFiles:   lockedFileNames(a.store, pack),
	}

	inst.State = db.InstanceInstalling
	if err := a.store.SaveInstance(inst); err != nil {
		log.Fatalw("Failed to mark instance as installing", zap.Error(err))
	}

	result := runSyncTUI(func(progress *syncer.Reporter) syncer.Result {
		return a.reconciler.Reconcile(context.Background(), inst.Path, desired, pack.OverridesPath, opts, progress)
	})

	inst.State = db.InstanceIdle
	inst.LastSynced = time.Now()
	if err := a.store.SaveInstance(inst); err != nil {
		log.Warnw("Failed to mark instance as idle after sync", zap.Error(err))
	}

	for _, w := range result.Warnings {
		log.Warn(w)
	}
	for _, e := range result.Errors {
		log.Error(e)
	}
	if result.Success {
		log.Infof("%s Downloaded %d mods, skipped %d, copied %d config files.",
			ui.Good("Sync finished."), result.ModsDownloaded, result.ModsSkipped, result.ConfigsCopied)
	} else {
		log.Errorf("%s %d mods downloaded, %d errors.",
			ui.Bad("Sync finished with errors."), result.ModsDownloaded, len(result.Errors))
	}
}
