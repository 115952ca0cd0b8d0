// Package instant makes single metadata mutations (add, remove, enable,
// disable a mod) appear all-or-nothing across the metadata store and the
// instance filesystem. The metadata write commits first; if the paired
// filesystem step fails, the inverse metadata mutation is applied and the
// original filesystem error is surfaced.
package instant

import (
	"context"
	"errors"
	"time"

	"packsync/db"
	"packsync/locks"
	"packsync/syncer"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the slice of the metadata store the coordinator needs.
type Store interface {
	GetModpack(packID string) (*db.Modpack, error)
	SaveModpack(pack *db.Modpack) error
	GetMod(modID string) (*db.Mod, error)
	GetInstanceForModpack(packID string) (*db.Instance, error)
}

// GameCheck reports whether a game process is currently running against the
// instance at the given path.
type GameCheck func(instancePath string) bool

// Coordinator serializes and compensates instant-sync mutations.
type Coordinator struct {
	store       Store
	locks       *locks.Manager
	reconciler  *syncer.Reconciler
	gameRunning GameCheck
	lockTimeout time.Duration
	log         *zap.SugaredLogger
}

// NewCoordinator wires a coordinator. gameRunning may be nil, in which case
// no game-process gate is applied.
func NewCoordinator(store Store, lockMgr *locks.Manager, reconciler *syncer.Reconciler, gameRunning GameCheck, lockTimeout time.Duration, log *zap.SugaredLogger) *Coordinator {
	if gameRunning == nil {
		gameRunning = func(string) bool { return false }
	}
	return &Coordinator{
		store:       store,
		locks:       lockMgr,
		reconciler:  reconciler,
		gameRunning: gameRunning,
		lockTimeout: lockTimeout,
		log:         log,
	}
}

// BatchFailure records one failed item of a batch mutation.
type BatchFailure struct {
	ModID  string
	Reason string
}

// BatchResult enumerates per-item outcomes of a batch mutation.
type BatchResult struct {
	Added  []string
	Failed []BatchFailure
}

// canSync decides whether the filesystem half of a mutation may run. It is
// skipped (metadata-only) when no instance is linked, the instance is mid
// install, or the game has the files open; writing in those states is both
// unsafe and pointless, since an install overwrites the folder anyway.
func (c *Coordinator) canSync(packID string) (*db.Instance, bool) {
	inst, err := c.store.GetInstanceForModpack(packID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.log.Warnw("Failed to look up linked instance, skipping filesystem sync",
				zap.String("pack_id", packID), zap.Error(err))
		}
		return nil, false
	}
	if inst.State == db.InstanceInstalling {
		return inst, false
	}
	if c.gameRunning(inst.Path) {
		return inst, false
	}
	return inst, true
}

func desiredFromMod(mod *db.Mod, disabled bool) syncer.DesiredMod {
	return syncer.DesiredMod{
		ID:          mod.ModID,
		FileName:    mod.FileName,
		ContentType: mod.ContentType,
		ProjectID:   mod.ProjectID,
		FileID:      mod.FileID,
		Disabled:    disabled,
	}
}

// AddMod adds a mod to the pack's declared set and places its file on the
// linked instance. On filesystem failure the metadata add is compensated.
func (c *Coordinator) AddMod(ctx context.Context, packID, modID string) error {
	return c.locks.WithLock(packID, c.lockTimeout, func() error {
		return c.addModLocked(ctx, packID, modID)
	})
}

func (c *Coordinator) addModLocked(ctx context.Context, packID, modID string) error {
	pack, err := c.store.GetModpack(packID)
	if err != nil {
		return err
	}
	mod, err := c.store.GetMod(modID)
	if err != nil {
		return err
	}

	if !pack.AddModID(modID) {
		return nil // already a member
	}
	if err := c.store.SaveModpack(pack); err != nil {
		return err
	}

	inst, ok := c.canSync(packID)
	if !ok {
		return nil
	}

	if fsErr := c.reconciler.ApplyModFile(ctx, inst.Path, desiredFromMod(mod, false)); fsErr != nil {
		c.compensate(packID, modID, fsErr, func(p *db.Modpack) {
			p.RemoveModID(modID)
		})
		return fsErr
	}
	return nil
}

// RemoveMod removes a mod from the declared set and deletes its file. On
// filesystem failure the removal is compensated, restoring the previous
// disabled flag as well.
func (c *Coordinator) RemoveMod(ctx context.Context, packID, modID string) error {
	return c.locks.WithLock(packID, c.lockTimeout, func() error {
		pack, err := c.store.GetModpack(packID)
		if err != nil {
			return err
		}
		mod, err := c.store.GetMod(modID)
		if err != nil {
			return err
		}

		wasDisabled := pack.IsModDisabled(modID)
		if !pack.RemoveModID(modID) {
			return nil
		}
		if err := c.store.SaveModpack(pack); err != nil {
			return err
		}

		inst, ok := c.canSync(packID)
		if !ok {
			return nil
		}

		if fsErr := c.reconciler.RemoveModFile(inst.Path, desiredFromMod(mod, wasDisabled)); fsErr != nil {
			c.compensate(packID, modID, fsErr, func(p *db.Modpack) {
				p.AddModID(modID)
				p.SetModDisabled(modID, wasDisabled)
			})
			return fsErr
		}
		return nil
	})
}

// SetModEnabled flags a mod enabled or disabled and renames its file to
// match. On filesystem failure the flag change is compensated.
func (c *Coordinator) SetModEnabled(ctx context.Context, packID, modID string, enabled bool) error {
	return c.locks.WithLock(packID, c.lockTimeout, func() error {
		return c.setModEnabledLocked(ctx, packID, modID, enabled)
	})
}

// ToggleMod flips a mod's enabled state. Reading the current state and
// flipping it happen under one lock hold so concurrent toggles compose.
func (c *Coordinator) ToggleMod(ctx context.Context, packID, modID string) error {
	return c.locks.WithLock(packID, c.lockTimeout, func() error {
		pack, err := c.store.GetModpack(packID)
		if err != nil {
			return err
		}
		return c.setModEnabledLocked(ctx, packID, modID, pack.IsModDisabled(modID))
	})
}

func (c *Coordinator) setModEnabledLocked(ctx context.Context, packID, modID string, enabled bool) error {
	pack, err := c.store.GetModpack(packID)
	if err != nil {
		return err
	}
	mod, err := c.store.GetMod(modID)
	if err != nil {
		return err
	}

	wasDisabled := pack.IsModDisabled(modID)
	if wasDisabled == !enabled {
		return nil // already in the requested state
	}

	pack.SetModDisabled(modID, !enabled)
	if err := c.store.SaveModpack(pack); err != nil {
		return err
	}

	inst, ok := c.canSync(packID)
	if !ok {
		return nil
	}

	if fsErr := c.reconciler.ApplyModFile(ctx, inst.Path, desiredFromMod(mod, !enabled)); fsErr != nil {
		c.compensate(packID, modID, fsErr, func(p *db.Modpack) {
			p.SetModDisabled(modID, wasDisabled)
		})
		return fsErr
	}
	return nil
}

// AddModsBatch adds several mods, applying the add/compensate pattern per
// item. Items that fail are rolled back individually; successful items are
// kept.
func (c *Coordinator) AddModsBatch(ctx context.Context, packID string, modIDs []string) (BatchResult, error) {
	result := BatchResult{}
	err := c.locks.WithLock(packID, c.lockTimeout, func() error {
		for _, modID := range modIDs {
			if err := c.addModLocked(ctx, packID, modID); err != nil {
				result.Failed = append(result.Failed, BatchFailure{ModID: modID, Reason: err.Error()})
				continue
			}
			result.Added = append(result.Added, modID)
		}
		return nil
	})
	return result, err
}

// compensate re-reads the pack and applies the inverse metadata mutation. A
// compensation failure is logged but never masks the original filesystem
// error, which is the actionable one for the caller.
func (c *Coordinator) compensate(packID, modID string, original error, undo func(*db.Modpack)) {
	c.log.Warnw("Filesystem sync failed, compensating metadata mutation",
		zap.String("pack_id", packID),
		zap.String("mod_id", modID),
		zap.Error(original),
	)

	pack, err := c.store.GetModpack(packID)
	if err != nil {
		c.log.Errorw("Compensation failed: cannot reload modpack",
			zap.String("pack_id", packID), zap.Error(err))
		return
	}
	undo(pack)
	if err := c.store.SaveModpack(pack); err != nil {
		c.log.Errorw("Compensation failed: cannot save modpack",
			zap.String("pack_id", packID), zap.Error(err))
	}
}
