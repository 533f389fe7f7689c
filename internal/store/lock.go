package store

import (
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	syncerrors "github.com/notevec/notevec/internal/errors"
)

const (
	lockFileName    = "notevec.lock"
	lockRetryDelay  = 100 * time.Millisecond
	lockMaxAttempts = 20
)

// dirLock guards a store directory against concurrent writers from other
// processes. In-process concurrency is handled by the store's own mutex.
type dirLock struct {
	fl *flock.Flock
}

// acquireDirLock takes an exclusive advisory lock on the store directory,
// retrying briefly before reporting the collection as locked.
func acquireDirLock(dir string) (*dirLock, error) {
	fl := flock.New(filepath.Join(dir, lockFileName))

	for attempt := 0; attempt < lockMaxAttempts; attempt++ {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, syncerrors.StorageError("acquire store lock", err)
		}
		if locked {
			return &dirLock{fl: fl}, nil
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, syncerrors.New(syncerrors.ErrCodeCollectionLocked,
		"store is locked by another process: "+dir, nil)
}

func (l *dirLock) release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}
