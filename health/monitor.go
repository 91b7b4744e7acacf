package health

import (
	"sort"
	"sync"
	"time"
)

// Check reports the current status of a component
type Check func() Status

// Monitor polls the registered checks of named components on every read
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]Check)}
}

// Register adds a check, replacing any previous check for name
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// AggregateHealth runs every check and combines the results, sorted by name.
// Checks run without the lock held.
func (m *Monitor) AggregateHealth(system string) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make([]Check, 0, len(names))
	sort.Strings(names)
	for _, name := range names {
		checks = append(checks, m.checks[name])
	}
	m.mu.RUnlock()

	subs := make([]Status, len(names))
	for i, name := range names {
		subs[i] = runCheck(name, checks[i])
	}
	return Aggregate(system, subs)
}

func runCheck(name string, check Check) Status {
	status := check()
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	return status
}
