package coordinator

import (
	"log/slog"
	"sync"

	"github.com/fastfind/filepick/internal/config"
)

// The only package-level global is this one-time-protected slot holding
// a single *Coordinator instance; every other piece of state lives
// inside that instance and is reached only through it.
var (
	instanceOnce sync.Once
	instance     *Coordinator
	instanceMu   sync.Mutex
)

// Get returns the process-wide Coordinator, constructing it on first
// call. Subsequent calls with different cfg/logger arguments are
// ignored - the first caller wins, matching a process-wide singleton.
func Get(cfg *config.Config, logger *slog.Logger) *Coordinator {
	instanceOnce.Do(func() {
		instanceMu.Lock()
		defer instanceMu.Unlock()
		instance = New(cfg, logger)
	})
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// Reset discards the process-wide instance without cleaning it up,
// exposed only for tests that need a fresh singleton between cases.
func Reset() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
	instanceOnce = sync.Once{}
}
