package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"packsync/db"
	"packsync/syncer"
	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// linkCmd represents the link command
var linkCmd = &cobra.Command{
	Use:   "link [instancePath]",
	Short: "Links a game instance directory to the pack",
	Long: `Registers the directory as the pack's instance so sync, status and
instant mod changes know where to write. Re-linking an already linked pack
just updates the path.
Example: packsync link ~/.minecraft`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runLink(args[0])
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(path string) {
	a := bootstrap()
	pack := a.mustPack()

	abs, err := filepath.Abs(path)
	if err != nil {
		log.Fatalw("Failed to resolve instance path", zap.String("path", path), zap.Error(err))
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		log.Fatalf("Instance path %s is not a directory", abs)
	}

	inst, err := a.store.GetInstanceForModpack(pack.PackID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalw("Failed to look up linked instance", zap.Error(err))
		}
		inst = &db.Instance{
			InstanceID: fmt.Sprintf("inst-%s", pack.PackID),
			ModpackID:  pack.PackID,
			State:      db.InstanceIdle,
		}
	}

	inst.Path = abs
	inst.Loader = pack.Loader
	inst.LoaderVersion = pack.LoaderVersion
	if err := a.store.SaveInstance(inst); err != nil {
		log.Fatalw("Failed to save instance", zap.Error(err))
	}

	if unmanaged := scanUnmanaged(a.store, pack, abs); len(unmanaged) > 0 {
		fmt.Println(ui.Warn("Files in the instance not managed by this pack:"))
		for _, f := range unmanaged {
			fmt.Printf("  • %s\n", f)
		}
		fmt.Println("Run 'packsync sync --clear' to remove them, or add them to the pack.")
	}

	fmt.Printf("%s %s to pack %s\n", ui.Good("Linked"), abs, ui.Bold(pack.PackID))
}

// scanUnmanaged lists mod-like files already present in the instance that no
// declared mod owns.
func scanUnmanaged(mods modSource, pack *db.Modpack, instancePath string) []string {
	declared := make(map[string]bool, len(pack.ModIDs))
	for _, id := range pack.ModIDs {
		if mod, err := mods.GetMod(id); err == nil {
			declared[mod.FileName] = true
		}
	}

	var unmanaged []string
	for _, folder := range []string{"mods", "resourcepacks", "shaderpacks"} {
		entries, err := os.ReadDir(filepath.Join(instancePath, folder))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), syncer.DisabledSuffix)
			ext := strings.ToLower(filepath.Ext(name))
			if ext != ".jar" && ext != ".zip" {
				continue
			}
			if !declared[name] {
				unmanaged = append(unmanaged, filepath.Join(folder, entry.Name()))
			}
		}
	}
	return unmanaged
}
