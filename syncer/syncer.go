// Package syncer reconciles a modpack's declared mod/override set with an
// instance's on-disk state. Mod files live under the instance's mods/,
// resourcepacks/ and shaderpacks/ folders; a disabled mod is the enabled
// filename with a literal ".disabled" suffix in the same folder.
package syncer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"packsync/registry"

	"go.uber.org/zap"
)

// DisabledSuffix is the on-disk marker for a disabled mod file. This is a
// wire-level convention shared with existing installs; do not change it.
const DisabledSuffix = ".disabled"

// maxInFlightDownloads bounds download concurrency within one reconciliation.
const maxInFlightDownloads = 5

// Resolver resolves a (project, file) reference to download identity.
type Resolver interface {
	Resolve(ctx context.Context, projectID, fileID int) (registry.FileInfo, error)
}

// Fetcher downloads a URL to a destination path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// DesiredMod is one entry of a modpack's declared state.
type DesiredMod struct {
	ID          string
	FileName    string
	ContentType string // mod, resourcepack or shaderpack
	ProjectID   int
	FileID      int
	Disabled    bool
}

// Config sync modes for override files.
const (
	ConfigOverwrite = "overwrite"
	ConfigNewOnly   = "new_only"
	ConfigSkip      = "skip"
)

// Options controls a reconciliation run.
type Options struct {
	// ClearExisting removes mod files that are not declared and not locked
	// before applying the desired set.
	ClearExisting bool
	// ConfigSync is one of ConfigOverwrite, ConfigNewOnly, ConfigSkip.
	ConfigSync string
	// LockedFiles are filenames clearExisting must never remove.
	LockedFiles map[string]bool
}

// Result summarizes a reconciliation. Per-item failures are collected here
// rather than aborting the run.
type Result struct {
	Success        bool
	ModsDownloaded int
	ModsSkipped    int
	ConfigsCopied  int
	ConfigsSkipped int
	Errors         []string
	Warnings       []string
}

// Reconciler applies declared modpack state onto an instance directory.
type Reconciler struct {
	resolver Resolver
	fetcher  Fetcher
	log      *zap.SugaredLogger
}

// NewReconciler wires a reconciler with its collaborators.
func NewReconciler(resolver Resolver, fetcher Fetcher, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{resolver: resolver, fetcher: fetcher, log: log}
}

// FolderFor maps a content type to its instance subfolder.
func FolderFor(contentType string) string {
	switch contentType {
	case "shaderpack":
		return "shaderpacks"
	case "resourcepack":
		return "resourcepacks"
	default:
		return "mods"
	}
}

// Reconcile makes the instance under instancePath match desired. Overrides
// are copied from overridesPath according to opts.ConfigSync. Progress may
// be nil.
func (r *Reconciler) Reconcile(ctx context.Context, instancePath string, desired []DesiredMod, overridesPath string, opts Options, progress *Reporter) Result {
	res := Result{}

	for _, folder := range []string{"mods", "resourcepacks", "shaderpacks"} {
		if err := os.MkdirAll(filepath.Join(instancePath, folder), 0755); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("create %s: %v", folder, err))
			return res
		}
	}

	if opts.ClearExisting {
		r.clearExisting(instancePath, desired, opts.LockedFiles, &res, progress)
	}

	r.applyMods(ctx, instancePath, desired, &res, progress)
	r.copyOverrides(instancePath, overridesPath, opts.ConfigSync, &res, progress)

	res.Success = len(res.Errors) == 0
	return res
}

// clearExisting deletes unmanaged mod files from each content folder.
// Locked filenames survive, in both enabled and disabled form.
func (r *Reconciler) clearExisting(instancePath string, desired []DesiredMod, locked map[string]bool, res *Result, progress *Reporter) {
	declared := make(map[string]bool, len(desired))
	for _, m := range desired {
		declared[m.FileName] = true
	}

	for _, folder := range []string{"mods", "resourcepacks", "shaderpacks"} {
		dir := filepath.Join(instancePath, folder)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("list %s: %v", folder, err))
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			base := strings.TrimSuffix(entry.Name(), DisabledSuffix)
			if declared[base] || locked[base] {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			r.log.Infow("Removing unmanaged file", zap.String("file", path))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				if isFileLocked(err) {
					res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", entry.Name(), ErrResourceLocked))
				} else {
					res.Errors = append(res.Errors, fmt.Sprintf("remove %s: %v", entry.Name(), err))
				}
				continue
			}
			progress.Emit(Event{Stage: StageClear, Item: entry.Name()})
		}
	}
}

// applyMods brings every declared mod to its desired on-disk state, with
// downloads running under a bounded concurrency window. A single mod's
// failure is recorded and the rest continue.
func (r *Reconciler) applyMods(ctx context.Context, instancePath string, desired []DesiredMod, res *Result, progress *Reporter) {
	var (
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
		sem       = make(chan struct{}, maxInFlightDownloads)
	)
	total := len(desired)

	for _, mod := range desired {
		wg.Add(1)
		sem <- struct{}{}
		go func(m DesiredMod) {
			defer wg.Done()
			defer func() { <-sem }()

			downloaded, err := r.applyOne(ctx, instancePath, m)

			// Counting and emitting under the same lock keeps Current
			// strictly increasing across observers.
			mu.Lock()
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", m.FileName, err))
			} else if downloaded {
				res.ModsDownloaded++
			} else {
				res.ModsSkipped++
			}
			completed++
			progress.Emit(Event{
				Stage:   StageMods,
				Current: completed,
				Total:   total,
				Item:    m.FileName,
			})
			mu.Unlock()
		}(mod)
	}
	wg.Wait()
}

// applyOne reconciles a single mod file. Returns true when a download was
// performed.
func (r *Reconciler) applyOne(ctx context.Context, instancePath string, mod DesiredMod) (bool, error) {
	enabledPath := filepath.Join(instancePath, FolderFor(mod.ContentType), mod.FileName)
	disabledPath := enabledPath + DisabledSuffix

	enabledExists := fileExists(enabledPath)
	disabledExists := fileExists(disabledPath)

	// Repair the both-present violation toward the desired state.
	if enabledExists && disabledExists {
		stale := disabledPath
		if mod.Disabled {
			stale = enabledPath
		}
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return false, r.translate(err)
		}
		enabledExists = !mod.Disabled
		disabledExists = mod.Disabled
	}

	if mod.Disabled {
		switch {
		case disabledExists:
			return false, nil
		case enabledExists:
			return false, r.rename(enabledPath, disabledPath)
		default:
			// Truly absent: acquire it, then immediately mark disabled.
			if err := r.download(ctx, mod, enabledPath); err != nil {
				return false, err
			}
			return true, r.rename(enabledPath, disabledPath)
		}
	}

	switch {
	case enabledExists:
		return false, nil
	case disabledExists:
		return false, r.rename(disabledPath, enabledPath)
	default:
		return true, r.download(ctx, mod, enabledPath)
	}
}

// ApplyModFile brings a single mod to its desired on-disk state. This is
// the filesystem half of an instant-sync mutation.
func (r *Reconciler) ApplyModFile(ctx context.Context, instancePath string, mod DesiredMod) error {
	_, err := r.applyOne(ctx, instancePath, mod)
	return err
}

// RemoveModFile deletes a mod's file in both enabled and disabled form.
// Missing files are no-ops.
func (r *Reconciler) RemoveModFile(instancePath string, mod DesiredMod) error {
	enabledPath := filepath.Join(instancePath, FolderFor(mod.ContentType), mod.FileName)
	for _, path := range []string{enabledPath, enabledPath + DisabledSuffix} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return r.translate(err)
		}
	}
	return nil
}

func (r *Reconciler) download(ctx context.Context, mod DesiredMod, dest string) error {
	info, err := r.resolver.Resolve(ctx, mod.ProjectID, mod.FileID)
	if err != nil {
		return err
	}
	r.log.Infow("Downloading mod file",
		zap.String("file", info.FileName),
		zap.String("display_name", info.DisplayName),
	)
	if err := r.fetcher.Fetch(ctx, info.DownloadURL, dest); err != nil {
		return r.translate(err)
	}
	return nil
}

// rename moves a mod file between its enabled and disabled form. A missing
// source is a no-op, not an error: the desired state is simply already gone.
func (r *Reconciler) rename(from, to string) error {
	if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
		return r.translate(err)
	}
	return nil
}

func (r *Reconciler) translate(err error) error {
	if isFileLocked(err) {
		return fmt.Errorf("%w (%v)", ErrResourceLocked, err)
	}
	return err
}

// copyOverrides copies override files from src into the instance root,
// governed by the config sync mode.
func (r *Reconciler) copyOverrides(instancePath, src, mode string, res *Result, progress *Reporter) {
	if mode == ConfigSkip || mode == "" || src == "" {
		return
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return
	}

	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(instancePath, rel)

		if mode == ConfigNewOnly && fileExists(dest) {
			// Never touch a file the user may have edited.
			res.ConfigsSkipped++
			return nil
		}

		if err := copyFile(path, dest); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("override %s: %v", rel, err))
			return nil
		}
		res.ConfigsCopied++
		progress.Emit(Event{Stage: StageOverrides, Current: res.ConfigsCopied, Item: rel})
		return nil
	})
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("walk overrides: %v", err))
	}
}

// CopyOverrideTree copies an override folder onto the instance, always
// overwriting. Used by rollback to force the restored configuration.
func (r *Reconciler) CopyOverrideTree(instancePath, src string) (int, error) {
	res := Result{}
	r.copyOverrides(instancePath, src, ConfigOverwrite, &res, nil)
	if len(res.Errors) > 0 {
		return res.ConfigsCopied, fmt.Errorf("%s", strings.Join(res.Errors, "; "))
	}
	return res.ConfigsCopied, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
