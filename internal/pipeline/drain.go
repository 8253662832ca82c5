// drain.go - In-flight call tracking for safe engine teardown

package pipeline

import "sync"

// drainGroup counts in-flight extraction calls and refuses new entries
// once shutdown begins, so engine teardown never races a recognition pass.
type drainGroup struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func newDrainGroup() *drainGroup {
	return &drainGroup{}
}

// enter registers a new call; it reports false once shutdown has begun.
func (d *drainGroup) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.wg.Add(1)
	return true
}

func (d *drainGroup) leave() {
	d.wg.Done()
}

func (d *drainGroup) closing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// closeAndWait stops new entries and blocks until outstanding calls
// finish. Idempotent.
func (d *drainGroup) closeAndWait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
