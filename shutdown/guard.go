package shutdown

import "sync"

// SingleFlightGuard lets exactly one caller claim the pipeline for the life
// of the process. There is no release.
type SingleFlightGuard struct {
	mu      sync.Mutex
	running bool
}

// TryClaim returns true for the first caller only.
func (g *SingleFlightGuard) TryClaim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *SingleFlightGuard) Claimed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
