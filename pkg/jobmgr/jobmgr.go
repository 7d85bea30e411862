// Package jobmgr runs named background jobs with cancellation and in-memory
// tracking. Jobs run in their own goroutine and are removed automatically
// when they finish; starting a name that is already running is an error.
package jobmgr

import (
	"context"
	"fmt"
	"sync"
)

// DefaultManager is the global job manager.
var DefaultManager = NewManager(nil)

// StatusReporter receives lifecycle messages like "running:queue-reclaim"
// or "error:queue-reclaim:<msg>".
type StatusReporter func(string)

type job struct {
	name   string
	cancel context.CancelFunc
}

// Manager starts, stops and tracks background jobs. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	reporter StatusReporter
}

// NewManager creates a Manager. The reporter may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*job),
		reporter: reporter,
	}
}

// StartAsync launches runner in a goroutine under a cancellable context.
// The job is tracked until runner returns.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("job '%s' is already running", name)
	}
	m.jobs[name] = &job{name: name, cancel: cancel}
	m.mu.Unlock()

	go func() {
		m.report("running:" + name)

		if err := runner(ctx); err != nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		delete(m.jobs, name)
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	j.cancel()
	delete(m.jobs, name)
	return nil
}

// List returns the names of active jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		out = append(out, name)
	}
	return out
}

func (m *Manager) report(s string) {
	if m.reporter != nil {
		m.reporter(s)
	}
}
