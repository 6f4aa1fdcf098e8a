package vm

import (
	"sync"
	"sync/atomic"
)

// Monitor is a conventional mutex + condition variable per object
// identity, allocated on demand, backing the System.Threading.Monitor
// icalls.
type Monitor struct {
	mu   sync.Mutex
	cond *sync.Cond

	owner   int64 // goroutine-local owner tag; 0 means unheld
	recurse int32
}

func newMonitor() *Monitor {
	m := &Monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// MonitorTable allocates monitors for object identities on demand,
// indexed by the monitor slot object.Header.MonitorIndex hands out.
type MonitorTable struct {
	mu       sync.Mutex
	monitors []*Monitor // index 0 unused (0 means "no monitor yet")
}

// NewMonitorTable builds an empty monitor table.
func NewMonitorTable() *MonitorTable {
	return &MonitorTable{monitors: make([]*Monitor, 1)}
}

// Alloc reserves a new monitor slot, suitable for object.Header.MonitorIndex's
// alloc callback.
func (t *MonitorTable) Alloc() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.monitors = append(t.monitors, newMonitor())
	return uint32(len(t.monitors) - 1)
}

// Get returns the monitor at idx.
func (t *MonitorTable) Get(idx uint32) *Monitor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monitors[idx]
}

// Enter acquires m for the calling thread (tag), supporting recursive
// re-entry by the same thread.
func (m *Monitor) Enter(tag int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.owner != 0 && m.owner != tag {
		m.cond.Wait()
	}
	m.owner = tag
	m.recurse++
}

// TryEnter attempts Enter without blocking.
func (m *Monitor) TryEnter(tag int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != 0 && m.owner != tag {
		return false
	}
	m.owner = tag
	m.recurse++
	return true
}

// Exit releases one level of recursive ownership held by tag.
func (m *Monitor) Exit(tag int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != tag {
		return // SynchronizationLockException territory; caller surfaces it
	}
	m.recurse--
	if m.recurse == 0 {
		m.owner = 0
		m.cond.Signal()
	}
}

// IsEntered reports whether tag currently holds m (any recursion depth).
func (m *Monitor) IsEntered(tag int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == tag
}

// EnsureCctor runs fn (the class's static constructor body) at most once
// per process; concurrent callers observe the post-state once it returns.
// singleflight.Group collapses concurrent callers into
// one in-flight execution; the cctorDone flag then publishes completion
// with release/acquire semantics so that later callers skip singleflight
// entirely once the flag is visible.
func (c *Class) EnsureCctor(fn func() error) error {
	if atomic.LoadUint32(&c.cctorDone) != 0 {
		return nil
	}
	key := "cctor"
	_, err, _ := c.cctorOnce.Do(key, func() (interface{}, error) {
		if atomic.LoadUint32(&c.cctorDone) != 0 {
			return nil, nil
		}
		if ferr := fn(); ferr != nil {
			return nil, ferr
		}
		atomic.StoreUint32(&c.cctorDone, 1)
		return nil, nil
	})
	return err
}

// CctorFinished reports whether the class's static constructor has run to
// completion, with acquire semantics: observing true implies observing
// every field and vtable write the cctor performed.
func (c *Class) CctorFinished() bool {
	return atomic.LoadUint32(&c.cctorDone) != 0
}
