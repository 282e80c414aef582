package services

import (
	"sync"
	"time"
)

// DefaultQuantityDebounce is the idle window before a quantity change is written.
const DefaultQuantityDebounce = 500 * time.Millisecond

// FlushFunc performs the remote write for a settled quantity.
type FlushFunc func(productID string, quantity int)

type pendingWrite struct {
	timer    *time.Timer
	quantity int
}

// Debouncer coalesces quantity changes per product id. Each Schedule replaces any pending
// write for that product; once the delay passes untouched, flush runs once with the
// latest quantity. Keys are independent of each other.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingWrite
	flush   FlushFunc
	closed  bool
}

func NewDebouncer(delay time.Duration, flush FlushFunc) *Debouncer {
	if delay <= 0 {
		delay = DefaultQuantityDebounce
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pendingWrite),
		flush:   flush,
	}
}

// Schedule (re)starts the idle timer for productID with quantity as the value to write.
func (d *Debouncer) Schedule(productID string, quantity int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if prev, ok := d.pending[productID]; ok {
		prev.timer.Stop()
	}

	entry := &pendingWrite{quantity: quantity}
	entry.timer = time.AfterFunc(d.delay, func() { d.fire(productID, entry) })
	d.pending[productID] = entry
}

func (d *Debouncer) fire(productID string, entry *pendingWrite) {
	d.mu.Lock()
	// A timer that lost the race with Stop must not write a superseded value.
	if current, ok := d.pending[productID]; !ok || current != entry {
		d.mu.Unlock()
		return
	}
	delete(d.pending, productID)
	d.mu.Unlock()

	d.flush(productID, entry.quantity)
}

// Cancel drops the pending write for productID. Reports whether one was pending.
func (d *Debouncer) Cancel(productID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[productID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(d.pending, productID)
	return true
}

// CancelAll drops every pending write.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, id)
	}
}

// Pending returns the quantity waiting to be written for productID.
func (d *Debouncer) Pending(productID string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.pending[productID]
	if !ok {
		return 0, false
	}
	return entry.quantity, true
}

// Close cancels everything and ignores later Schedule calls.
func (d *Debouncer) Close() {
	d.CancelAll()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}
