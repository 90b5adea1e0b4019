package board

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrContention means the lock stayed held for the whole acquisition
// window. Callers may retry once; a stale lock usually means a crashed
// writer.
var ErrContention = errors.New("status board lock contention")

const (
	lockRetry   = 100 * time.Millisecond
	lockTimeout = 5 * time.Second
)

// acquireLock takes the exclusive lock file, retrying with backoff.
// Exclusive creation (not advisory locking) keeps the protocol identical
// on every platform. The returned release removes the lock file.
func acquireLock(path string) (func(), error) {
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("status board lock: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: held by pid %s for over %s (%s)",
				ErrContention, lockHolder(path), lockTimeout, path)
		}
		time.Sleep(lockRetry)
	}
}

func lockHolder(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	pid := strings.TrimSpace(string(raw))
	if _, err := strconv.Atoi(pid); err != nil {
		return "unknown"
	}
	return pid
}
