package syncer

import (
	"errors"
	"os"
	"syscall"
)

// ErrResourceLocked marks a filesystem failure caused by the game holding
// mod files open. Retryable once the game process exits.
var ErrResourceLocked = errors.New("file is locked - is the game running?")

// isFileLocked reports whether err looks like a busy/permission failure on a
// file the game has open.
func isFileLocked(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EPERM) || os.IsPermission(err)
}
