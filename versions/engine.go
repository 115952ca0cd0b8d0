// Package versions snapshots a modpack's mod set and restores snapshots
// later, re-acquiring mods that are no longer present in the library.
package versions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"packsync/db"
	"packsync/locks"
	"packsync/syncer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the slice of the metadata store the engine needs.
type Store interface {
	GetModpack(packID string) (*db.Modpack, error)
	SaveModpack(pack *db.Modpack) error
	GetMod(modID string) (*db.Mod, error)
	CreateMod(mod *db.Mod) error
	GetInstanceForModpack(packID string) (*db.Instance, error)
	SaveInstance(inst *db.Instance) error
	CreateVersion(v *db.PackVersion) error
	GetVersion(versionID string) (*db.PackVersion, error)
	LatestVersion(packID string) (*db.PackVersion, error)
}

// maxInFlightRestores bounds download concurrency during a rollback.
const maxInFlightRestores = 5

// FailedMod records one mod that could not be restored.
type FailedMod struct {
	ModID  string
	Reason string
}

// RollbackResult enumerates a rollback's outcome. Partial success is the
// normal failure mode: restored mods are kept even when others fail.
type RollbackResult struct {
	Success          bool
	RestoredCount    int
	FailedCount      int
	FailedMods       []FailedMod
	TotalMods        int
	OriginalModCount int
	LoaderRestored   bool
}

// Engine creates and restores immutable pack snapshots.
type Engine struct {
	store       Store
	resolver    syncer.Resolver
	fetcher     syncer.Fetcher
	reconciler  *syncer.Reconciler
	locks       *locks.Manager
	lockTimeout time.Duration
	log         *zap.SugaredLogger
}

// NewEngine wires a version engine.
func NewEngine(store Store, resolver syncer.Resolver, fetcher syncer.Fetcher, reconciler *syncer.Reconciler, lockMgr *locks.Manager, lockTimeout time.Duration, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store:       store,
		resolver:    resolver,
		fetcher:     fetcher,
		reconciler:  reconciler,
		locks:       lockMgr,
		lockTimeout: lockTimeout,
		log:         log,
	}
}

// Initialize creates the first version of a pack from its current state.
// Once a pack has any history, calling it again is a no-op.
func (e *Engine) Initialize(packID, message string) (*db.PackVersion, error) {
	var out *db.PackVersion
	err := e.locks.WithLock(packID, e.lockTimeout, func() error {
		latest, err := e.store.LatestVersion(packID)
		if err == nil {
			out = latest
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		out, err = e.createVersionLocked(packID, message, "", true)
		return err
	})
	return out, err
}

// CreateVersion snapshots the pack's current mod set. When the set matches
// the latest version and hasConfigChanges is false, no new version is
// created and the latest one is returned, unless force is set.
func (e *Engine) CreateVersion(packID, message, tag string, hasConfigChanges, force bool) (*db.PackVersion, error) {
	var out *db.PackVersion
	err := e.locks.WithLock(packID, e.lockTimeout, func() error {
		if !force {
			latest, err := e.store.LatestVersion(packID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil && !hasConfigChanges {
				pack, perr := e.store.GetModpack(packID)
				if perr != nil {
					return perr
				}
				if sameIDSet(latest.ModIDs, pack.ModIDs) {
					out = latest
					return nil
				}
			}
		}
		var err error
		out, err = e.createVersionLocked(packID, message, tag, false)
		return err
	})
	return out, err
}

func (e *Engine) createVersionLocked(packID, message, tag string, initial bool) (*db.PackVersion, error) {
	pack, err := e.store.GetModpack(packID)
	if err != nil {
		return nil, err
	}

	version := &db.PackVersion{
		VersionID:     newID("ver"),
		ModpackID:     packID,
		Message:       message,
		Tag:           tag,
		ModIDs:        append(db.StringList{}, pack.ModIDs...),
		Loader:        pack.Loader,
		LoaderVersion: pack.LoaderVersion,
	}

	for _, modID := range pack.ModIDs {
		mod, err := e.store.GetMod(modID)
		if err != nil {
			// The library entry is already gone; keep whatever identity the
			// id itself encodes so the version stays restorable.
			snap := db.ModSnapshot{ModID: modID, Disabled: pack.IsModDisabled(modID)}
			if projectID, fileID, ok := parseEncodedID(modID); ok {
				snap.ProjectID = projectID
				snap.FileID = fileID
			}
			version.Snapshots = append(version.Snapshots, snap)
			e.log.Warnw("Snapshotting mod with no library entry",
				zap.String("mod_id", modID), zap.Error(err))
			continue
		}
		version.Snapshots = append(version.Snapshots, db.ModSnapshot{
			ModID:        mod.ModID,
			ProjectID:    mod.ProjectID,
			FileID:       mod.FileID,
			FileName:     mod.FileName,
			ContentType:  mod.ContentType,
			DisplayName:  mod.DisplayName,
			VersionLabel: mod.VersionLabel,
			Disabled:     pack.IsModDisabled(modID),
		})
	}

	if err := e.store.CreateVersion(version); err != nil {
		return nil, err
	}

	if initial {
		e.log.Infow("Initialized version history", zap.String("pack_id", packID), zap.String("version_id", version.VersionID))
	} else {
		e.log.Infow("Created version", zap.String("pack_id", packID), zap.String("version_id", version.VersionID), zap.String("message", message))
	}
	return version, nil
}

// restorePlan is one mod of the rollback target, classified against the
// current library.
type restorePlan struct {
	modID    string   // id in the target version
	keep     *db.Mod  // set when the library entry matches the snapshot
	download *db.Mod  // new entity to create after a successful download
	snap     db.ModSnapshot
	reason   string // set when unrestorable
}

// Rollback restores the pack's declared mod set to the given version.
// Mods absent from the library, or present under a different file id, are
// re-acquired through the registry; mods that still match the library but
// lost their file on the instance get the file placed back. Enabled and
// disabled state comes from the version's snapshots. A single download
// failure never aborts the rest. History is never truncated: rollback is
// forward-only state replacement.
func (e *Engine) Rollback(ctx context.Context, packID, versionID string, progress *syncer.Reporter) (RollbackResult, error) {
	var result RollbackResult
	err := e.locks.WithLock(packID, e.lockTimeout, func() error {
		var err error
		result, err = e.rollbackLocked(ctx, packID, versionID, progress)
		return err
	})
	return result, err
}

func (e *Engine) rollbackLocked(ctx context.Context, packID, versionID string, progress *syncer.Reporter) (RollbackResult, error) {
	result := RollbackResult{}

	version, err := e.store.GetVersion(versionID)
	if err != nil {
		return result, fmt.Errorf("load version %s: %w", versionID, err)
	}
	if version.ModpackID != packID {
		return result, fmt.Errorf("version %s does not belong to pack %s", versionID, packID)
	}
	pack, err := e.store.GetModpack(packID)
	if err != nil {
		return result, err
	}

	result.TotalMods = len(version.ModIDs)
	result.OriginalModCount = len(pack.ModIDs)

	inst, instErr := e.store.GetInstanceForModpack(packID)
	if instErr != nil {
		inst = nil
	}

	plans := e.classify(version)

	var toDownload []*restorePlan
	for i := range plans {
		if plans[i].reason == "" && plans[i].keep == nil {
			toDownload = append(toDownload, &plans[i])
		}
	}

	e.downloadRestores(ctx, toDownload, inst, progress)

	// Final set: library mods that already matched, plus everything that
	// downloaded successfully, in the target version's order. The disabled
	// set is rebuilt from the snapshots so a restored mod comes back in the
	// enabled state the version recorded, even under a fresh id.
	finalIDs := db.StringList{}
	finalDisabled := db.StringList{}
	for i := range plans {
		p := &plans[i]
		switch {
		case p.reason != "":
			result.FailedMods = append(result.FailedMods, FailedMod{ModID: p.modID, Reason: p.reason})
		case p.keep != nil:
			finalIDs = append(finalIDs, p.keep.ModID)
			if p.snap.Disabled {
				finalDisabled = append(finalDisabled, p.keep.ModID)
			}
		case p.download != nil:
			if err := e.store.CreateMod(p.download); err != nil {
				result.FailedMods = append(result.FailedMods, FailedMod{ModID: p.modID, Reason: fmt.Sprintf("save restored mod: %v", err)})
				continue
			}
			finalIDs = append(finalIDs, p.download.ModID)
			if p.snap.Disabled {
				finalDisabled = append(finalDisabled, p.download.ModID)
			}
			result.RestoredCount++
		}
	}

	// The only destructive metadata write of the whole operation, applied
	// after every download has been attempted.
	pack.ModIDs = finalIDs
	pack.DisabledModIDs = finalDisabled
	pack.LockedModIDs = intersect(pack.LockedModIDs, finalIDs)

	if inst != nil {
		e.replaceMissingFiles(ctx, plans, pack, inst, &result)
	}

	if version.Loader != "" {
		pack.Loader = version.Loader
		pack.LoaderVersion = version.LoaderVersion
		result.LoaderRestored = true
	}

	if err := e.store.SaveModpack(pack); err != nil {
		return result, err
	}

	if inst != nil {
		if result.LoaderRestored {
			inst.Loader = version.Loader
			inst.LoaderVersion = version.LoaderVersion
			if err := e.store.SaveInstance(inst); err != nil {
				e.log.Warnw("Failed to restore loader on instance", zap.String("instance_id", inst.InstanceID), zap.Error(err))
			}
		}
		if pack.OverridesPath != "" {
			// Force the live config files to match the restored state, not
			// just the declared mod list.
			if copied, err := e.reconciler.CopyOverrideTree(inst.Path, pack.OverridesPath); err != nil {
				e.log.Warnw("Failed to re-copy overrides after rollback", zap.Error(err))
			} else {
				e.log.Infow("Re-copied overrides after rollback", zap.Int("files", copied))
			}
		}
	}

	result.FailedCount = len(result.FailedMods)
	result.Success = result.FailedCount == 0
	return result, nil
}

// classify sorts every mod id of the target version into existing,
// version-mismatch, missing or unrestorable.
func (e *Engine) classify(version *db.PackVersion) []restorePlan {
	plans := make([]restorePlan, 0, len(version.ModIDs))

	for _, modID := range version.ModIDs {
		plan := restorePlan{modID: modID}
		snap, hasSnap := version.SnapshotFor(modID)
		plan.snap = snap

		mod, err := e.store.GetMod(modID)
		switch {
		case err == nil && (!hasSnap || snap.FileID == 0 || mod.FileID == snap.FileID):
			// Exact match: use the library entry as-is, no network call.
			plan.keep = mod
		case err == nil:
			// Same id, different file: re-acquire the snapshot's exact file
			// as a new entity. The existing library mod is left untouched.
			plan.download = &db.Mod{
				ModID:        newID("restored"),
				ContentType:  mod.ContentType,
				ProjectID:    snap.ProjectID,
				FileID:       snap.FileID,
				DisplayName:  snap.DisplayName,
				VersionLabel: snap.VersionLabel,
			}
		case hasSnap && snap.ProjectID != 0 && snap.FileID != 0:
			plan.download = &db.Mod{
				ModID:        modID,
				ContentType:  snap.ContentType,
				ProjectID:    snap.ProjectID,
				FileID:       snap.FileID,
				DisplayName:  snap.DisplayName,
				VersionLabel: snap.VersionLabel,
			}
		default:
			if projectID, fileID, ok := parseEncodedID(modID); ok {
				plan.download = &db.Mod{
					ModID:     modID,
					ProjectID: projectID,
					FileID:    fileID,
				}
			} else {
				plan.reason = "no resolvable identity in snapshot or id"
			}
		}
		plans = append(plans, plan)
	}
	return plans
}

// replaceMissingFiles brings kept mods' files back to the restored state:
// a mod that matched the library but lost its file on the instance, such as
// one removed from the pack and coming back with the rollback, is
// re-downloaded and counts as restored; a file in the wrong enabled or
// disabled form is renamed.
func (e *Engine) replaceMissingFiles(ctx context.Context, plans []restorePlan, pack *db.Modpack, inst *db.Instance, result *RollbackResult) {
	for i := range plans {
		p := &plans[i]
		if p.keep == nil {
			continue
		}
		base := instanceFilePath(inst.Path, p.keep)
		missing := !fileExists(base) && !fileExists(base+syncer.DisabledSuffix)

		mod := syncer.DesiredMod{
			ID:          p.keep.ModID,
			FileName:    p.keep.FileName,
			ContentType: p.keep.ContentType,
			ProjectID:   p.keep.ProjectID,
			FileID:      p.keep.FileID,
			Disabled:    pack.IsModDisabled(p.keep.ModID),
		}
		if err := e.reconciler.ApplyModFile(ctx, inst.Path, mod); err != nil {
			result.FailedMods = append(result.FailedMods, FailedMod{ModID: p.modID, Reason: fmt.Sprintf("re-place file: %v", err)})
			continue
		}
		if missing {
			e.log.Infow("Re-placed missing mod file",
				zap.String("mod_id", p.keep.ModID), zap.String("file", p.keep.FileName))
			result.RestoredCount++
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// downloadRestores resolves and fetches every planned download with bounded
// concurrency. Failures are recorded on the plan; the rest continue.
func (e *Engine) downloadRestores(ctx context.Context, plans []*restorePlan, inst *db.Instance, progress *syncer.Reporter) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		sem       = make(chan struct{}, maxInFlightRestores)
	)
	total := len(plans)

	for _, plan := range plans {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *restorePlan) {
			defer wg.Done()
			defer func() { <-sem }()
			// Incrementing and emitting under one lock keeps Current
			// strictly increasing across observers.
			defer func() {
				mu.Lock()
				completed++
				progress.Emit(syncer.Event{
					Stage:   syncer.StageRestore,
					Current: completed,
					Total:   total,
					Item:    p.modID,
				})
				mu.Unlock()
			}()

			info, err := e.resolver.Resolve(ctx, p.download.ProjectID, p.download.FileID)
			if err != nil {
				p.reason = fmt.Sprintf("resolve: %v", err)
				return
			}

			p.download.FileName = info.FileName
			if p.download.DisplayName == "" {
				p.download.DisplayName = info.DisplayName
			}
			if p.download.ContentType == "" {
				p.download.ContentType = db.ContentTypeForClass(info.ClassID)
			}

			if inst == nil {
				// No linked instance: restore metadata only; the next full
				// sync will place the file.
				return
			}

			dest := instanceFilePath(inst.Path, p.download)
			if err := e.fetcher.Fetch(ctx, info.DownloadURL, dest); err != nil {
				p.reason = fmt.Sprintf("download: %v", err)
			}
		}(plan)
	}
	wg.Wait()
}

func instanceFilePath(instancePath string, mod *db.Mod) string {
	return filepath.Join(instancePath, syncer.FolderFor(mod.ContentType), mod.FileName)
}

// parseEncodedID recovers registry identity from ids of the form
// "cf-{project}-{file}".
func parseEncodedID(modID string) (projectID, fileID int, ok bool) {
	parts := strings.Split(modID, "-")
	if len(parts) != 3 || parts[0] != "cf" {
		return 0, 0, false
	}
	projectID, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	fileID, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return projectID, fileID, true
}

func sameIDSet(a, b db.StringList) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

func intersect(subset, set db.StringList) db.StringList {
	out := db.StringList{}
	for _, id := range subset {
		if set.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func newID(prefix string) string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(b))
}
