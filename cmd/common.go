package cmd

import (
	"errors"
	"fmt"
	"time"

	"packsync/config"
	"packsync/db"
	"packsync/instant"
	"packsync/locks"
	"packsync/registry"
	"packsync/syncer"
	"packsync/versions"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app bundles the wired-up core every command runs against.
type app struct {
	cfg         config.Config
	store       *db.Store
	client      *registry.Client
	reconciler  *syncer.Reconciler
	coordinator *instant.Coordinator
	engine      *versions.Engine
}

// bootstrap handles shared initialization logic for commands.
func bootstrap() *app {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalw("Failed to load configuration", zap.Error(err))
	}

	if cfg.CurseForgeAPIKey == "" {
		log.Fatal("Error: CURSEFORGE_API_KEY must be set.")
	}

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalw("Failed to open database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	log.Infow("Database opened", zap.String("path", cfg.DatabasePath))

	client, err := registry.NewClient(cfg, log)
	if err != nil {
		log.Fatalw("Failed to create registry client", zap.Error(err))
	}

	store := db.NewStore(gdb)
	lockMgr := locks.NewManager()
	lockTimeout := time.Duration(cfg.LockTimeout) * time.Second
	reconciler := syncer.NewReconciler(client, client, log)

	return &app{
		cfg:         cfg,
		store:       store,
		client:      client,
		reconciler:  reconciler,
		coordinator: instant.NewCoordinator(store, lockMgr, reconciler, nil, lockTimeout, log),
		engine:      versions.NewEngine(store, client, client, reconciler, lockMgr, lockTimeout, log),
	}
}

// mustPack loads the selected modpack or exits.
func (a *app) mustPack() *db.Modpack {
	pack, err := a.store.GetModpack(packFlag)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("Modpack %q not found. Create it with 'packsync create'.", packFlag)
		}
		log.Fatalw("Failed to load modpack", zap.String("pack_id", packFlag), zap.Error(err))
	}
	return pack
}

type modSource interface {
	GetMod(modID string) (*db.Mod, error)
}

type versionSource interface {
	ListVersions(packID string) ([]db.PackVersion, error)
}

// desiredState builds the reconciler's view of the pack's declared mod set.
// Mods whose library record is gone are reported as warnings, not fatal.
func desiredState(mods modSource, pack *db.Modpack) ([]syncer.DesiredMod, []string) {
	desired := make([]syncer.DesiredMod, 0, len(pack.ModIDs))
	var warnings []string

	for _, id := range pack.ModIDs {
		mod, err := mods.GetMod(id)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("mod %s has no library record, skipping", id))
			continue
		}
		desired = append(desired, syncer.DesiredMod{
			ID:          mod.ModID,
			FileName:    mod.FileName,
			ContentType: mod.ContentType,
			ProjectID:   mod.ProjectID,
			FileID:      mod.FileID,
			Disabled:    pack.IsModDisabled(id),
		})
	}
	return desired, warnings
}

// lockedFileNames maps the pack's locked mod ids to the filenames a cleanup
// pass must leave alone.
func lockedFileNames(mods modSource, pack *db.Modpack) map[string]bool {
	locked := make(map[string]bool, len(pack.LockedModIDs))
	for _, id := range pack.LockedModIDs {
		mod, err := mods.GetMod(id)
		if err != nil {
			continue
		}
		locked[mod.FileName] = true
	}
	return locked
}

// previousFileNames collects filenames recorded by older versions for mods
// still in the pack, keyed back to the mod id. The status check uses them to
// classify stale files as pending updates rather than strays.
func previousFileNames(history versionSource, mods modSource, pack *db.Modpack) map[string]string {
	current := make(map[string]bool, len(pack.ModIDs))
	for _, id := range pack.ModIDs {
		if mod, err := mods.GetMod(id); err == nil {
			current[mod.FileName] = true
		}
	}

	previous := make(map[string]string)
	versionList, err := history.ListVersions(pack.PackID)
	if err != nil {
		return previous
	}
	for i := range versionList {
		for _, snap := range versionList[i].Snapshots {
			if snap.FileName == "" || current[snap.FileName] {
				continue
			}
			if pack.ModIDs.Contains(snap.ModID) {
				previous[snap.FileName] = snap.ModID
			}
		}
	}
	return previous
}
