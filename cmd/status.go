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

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the differences between the pack and its linked instance",
	Long: `Compares the modpack's declared state against the linked instance
directory without changing anything on disk.`,
	Run: func(_ *cobra.Command, _ []string) {
		runStatus()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus() {
	a := bootstrap()
	pack := a.mustPack()

	inst, err := a.store.GetInstanceForModpack(pack.PackID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("Modpack %s has no linked instance.\n", ui.Bold(pack.Name))
			return
		}
		log.Fatalw("Failed to look up linked instance", zap.Error(err))
	}

	desired, warnings := desiredState(a.store, pack)
	for _, w := range warnings {
		log.Warn(w)
	}

	status := a.reconciler.CheckSyncStatus(syncer.StatusInput{
		InstancePath:          inst.Path,
		Desired:               desired,
		OverridesPath:         pack.OverridesPath,
		LockedFiles:           lockedFileNames(a.store, pack),
		PreviousFiles:         previousFileNames(a.store, a.store, pack),
		InstanceLoader:        inst.Loader,
		InstanceLoaderVersion: inst.LoaderVersion,
		PackLoader:            pack.Loader,
		PackLoaderVersion:     pack.LoaderVersion,
	})

	fmt.Printf("%s @ %s\n\n", ui.Bold(pack.Name), inst.Path)

	if !status.NeedsSync {
		fmt.Println(ui.Good("Instance is in sync."))
		return
	}

	printDiff("Missing from instance", status.MissingInInstance)
	printDiff("Not declared by the pack", status.ExtraInInstance)
	printDiff("Wrong enabled/disabled state", status.DisabledMismatch)
	printDiff("Updates to apply", status.UpdatesToApply)
	printDiff("Config differences", status.ConfigDifferences)
	if status.LoaderMismatch {
		fmt.Printf("%s instance has %s %s, pack wants %s %s\n",
			ui.Warn("Loader mismatch:"), inst.Loader, inst.LoaderVersion, pack.Loader, pack.LoaderVersion)
	}

	fmt.Printf("\n%s Run 'packsync sync' to reconcile.\n",
		ui.Bad(fmt.Sprintf("%d differences.", status.TotalDifferences)))
}

func printDiff(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println(ui.Warn(label + ":"))
	for _, item := range items {
		fmt.Printf("  • %s\n", item)
	}
}
