package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// episodeLock serializes resume invocations for one episode. The in-process
// mutex covers goroutines in this process; the flock advisory lock covers a
// second podscribe process pointed at the same work directory.
type episodeLock struct {
	mu   sync.Mutex
	file *flock.Flock
}

func (m *Manager) lockEpisode(episodeID int64) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[episodeID]
	if !ok {
		lockDir := filepath.Join(m.cfg.Paths.WorkDir, "locks")
		lock = &episodeLock{
			file: flock.New(filepath.Join(lockDir, fmt.Sprintf("episode_%d.lock", episodeID))),
		}
		m.locks[episodeID] = lock
	}
	m.mu.Unlock()

	if !lock.mu.TryLock() {
		return nil, fmt.Errorf("episode %d is already being processed", episodeID)
	}

	if err := os.MkdirAll(filepath.Dir(lock.file.Path()), 0o755); err != nil {
		lock.mu.Unlock()
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}
	acquired, err := lock.file.TryLock()
	if err != nil {
		lock.mu.Unlock()
		return nil, fmt.Errorf("acquire episode lock: %w", err)
	}
	if !acquired {
		lock.mu.Unlock()
		return nil, fmt.Errorf("episode %d is locked by another process", episodeID)
	}

	return func() {
		_ = lock.file.Unlock()
		lock.mu.Unlock()
	}, nil
}
