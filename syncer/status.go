package syncer

import (
	"os"
	"path/filepath"
	"strings"
)

// StatusInput carries everything the status check needs. PreviousFiles maps
// filenames recorded by older versions back to their mod ids; files matching
// one count as pending updates rather than strays.
type StatusInput struct {
	InstancePath  string
	Desired       []DesiredMod
	OverridesPath string
	LockedFiles   map[string]bool
	PreviousFiles map[string]string

	InstanceLoader        string
	InstanceLoaderVersion string
	PackLoader            string
	PackLoaderVersion     string
}

// SyncStatus is the derived difference between declared and actual state.
// Never stored; safe to recompute as often as the UI polls.
type SyncStatus struct {
	MissingInInstance []string // mod ids with no file on disk
	ExtraInInstance   []string // filenames on disk that no declared mod owns
	DisabledMismatch  []string // mod ids whose on-disk enabled state is wrong
	UpdatesToApply    []string // mod ids with only a previous version's file on disk
	ConfigDifferences []string // override files missing or differing at the instance
	LoaderMismatch    bool
	NeedsSync         bool
	TotalDifferences  int
}

// CheckSyncStatus computes the sync status without touching disk state:
// pure reads, no writes, no renames. Repeated calls with no intervening
// change return identical results.
func (r *Reconciler) CheckSyncStatus(in StatusInput) SyncStatus {
	status := SyncStatus{}

	declared := make(map[string]*DesiredMod, len(in.Desired))
	for i := range in.Desired {
		declared[in.Desired[i].FileName] = &in.Desired[i]
	}

	// Every file a previous version's mod might still be occupying.
	previousOnDisk := make(map[string]bool)

	for _, folder := range []string{"mods", "resourcepacks", "shaderpacks"} {
		entries, err := os.ReadDir(filepath.Join(in.InstancePath, folder))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			base := strings.TrimSuffix(entry.Name(), DisabledSuffix)
			if _, ok := declared[base]; ok {
				continue
			}
			if in.LockedFiles[base] {
				continue
			}
			if modID, ok := in.PreviousFiles[base]; ok {
				previousOnDisk[modID] = true
				continue
			}
			status.ExtraInInstance = append(status.ExtraInInstance, entry.Name())
		}
	}

	for _, mod := range in.Desired {
		enabledPath := filepath.Join(in.InstancePath, FolderFor(mod.ContentType), mod.FileName)
		enabledExists := fileExists(enabledPath)
		disabledExists := fileExists(enabledPath + DisabledSuffix)

		switch {
		case !enabledExists && !disabledExists:
			if previousOnDisk[mod.ID] {
				status.UpdatesToApply = append(status.UpdatesToApply, mod.ID)
			} else {
				status.MissingInInstance = append(status.MissingInInstance, mod.ID)
			}
		case mod.Disabled && enabledExists:
			status.DisabledMismatch = append(status.DisabledMismatch, mod.ID)
		case !mod.Disabled && !enabledExists && disabledExists:
			status.DisabledMismatch = append(status.DisabledMismatch, mod.ID)
		}
	}

	status.ConfigDifferences = r.diffOverrides(in.InstancePath, in.OverridesPath)

	status.LoaderMismatch = in.PackLoader != "" &&
		(in.InstanceLoader != in.PackLoader || in.InstanceLoaderVersion != in.PackLoaderVersion)

	status.TotalDifferences = len(status.MissingInInstance) +
		len(status.ExtraInInstance) +
		len(status.DisabledMismatch) +
		len(status.UpdatesToApply) +
		len(status.ConfigDifferences)
	status.NeedsSync = status.TotalDifferences > 0 || status.LoaderMismatch

	return status
}

// diffOverrides lists override files that are absent at the instance or
// differ in size from the source.
func (r *Reconciler) diffOverrides(instancePath, src string) []string {
	if src == "" {
		return nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}

	var diffs []string
	_ = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destInfo, err := os.Stat(filepath.Join(instancePath, rel))
		if err != nil || destInfo.Size() != info.Size() {
			diffs = append(diffs, rel)
		}
		return nil
	})
	return diffs
}
