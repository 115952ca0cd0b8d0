package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"packsync/db"
	"packsync/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add [projectID fileID]...",
	Short: "Adds registry files to the pack and the linked instance",
	Long: `Resolves one or more project/file pairs against the registry,
records them in the mod library and adds them to the pack. When an idle
instance is linked the files are downloaded into place immediately.
Example: packsync add 238222 4711 310806 5120`,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected one or more projectID fileID pairs")
		}
		return nil
	},
	Run: func(_ *cobra.Command, args []string) {
		pairs := make([][2]int, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			projectID, err := strconv.Atoi(args[i])
			if err != nil {
				log.Fatalf("Invalid project id %q", args[i])
			}
			fileID, err := strconv.Atoi(args[i+1])
			if err != nil {
				log.Fatalf("Invalid file id %q", args[i+1])
			}
			pairs = append(pairs, [2]int{projectID, fileID})
		}
		runAdd(pairs)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(pairs [][2]int) {
	a := bootstrap()
	pack := a.mustPack()
	ctx := context.Background()

	modIDs := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		mod, err := ensureLibraryMod(ctx, a, pair[0], pair[1])
		if err != nil {
			log.Fatalw("Failed to resolve file against the registry",
				zap.Int("project_id", pair[0]), zap.Int("file_id", pair[1]), zap.Error(err))
		}
		modIDs = append(modIDs, mod.ModID)
	}

	if len(modIDs) == 1 {
		if err := a.coordinator.AddMod(ctx, pack.PackID, modIDs[0]); err != nil {
			log.Fatalw("Failed to add mod to pack", zap.String("mod_id", modIDs[0]), zap.Error(err))
		}
		fmt.Printf("%s %s\n", ui.Good("Added"), describeMod(a, modIDs[0]))
		return
	}

	result, err := a.coordinator.AddModsBatch(ctx, pack.PackID, modIDs)
	if err != nil {
		log.Fatalw("Failed to add mods to pack", zap.Error(err))
	}
	for _, id := range result.Added {
		fmt.Printf("%s %s\n", ui.Good("Added"), describeMod(a, id))
	}
	for _, failed := range result.Failed {
		fmt.Printf("%s %s: %s\n", ui.Bad("Failed"), failed.ModID, failed.Reason)
	}
}

// ensureLibraryMod returns the library record for a project/file pair,
// resolving and creating it if this is the first time it is seen.
func ensureLibraryMod(ctx context.Context, a *app, projectID, fileID int) (*db.Mod, error) {
	modID := fmt.Sprintf("cf-%d-%d", projectID, fileID)
	mod, err := a.store.GetMod(modID)
	if err == nil {
		return mod, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	info, err := a.client.Resolve(ctx, projectID, fileID)
	if err != nil {
		return nil, err
	}
	mod = &db.Mod{
		ModID:       modID,
		FileName:    info.FileName,
		ContentType: db.ContentTypeForClass(info.ClassID),
		ProjectID:   projectID,
		FileID:      fileID,
		DisplayName: info.DisplayName,
	}
	if err := a.store.CreateMod(mod); err != nil {
		return nil, err
	}
	return mod, nil
}

func describeMod(a *app, modID string) string {
	mod, err := a.store.GetMod(modID)
	if err != nil || mod.DisplayName == "" {
		return modID
	}
	return fmt.Sprintf("%s (%s)", ui.Bold(mod.DisplayName), modID)
}
