// Package allocator tracks shares of a fixed capacity handed out to many holders,
// such as the watts of a cluster's power budget.
package allocator

import (
	"fmt"
	"sync"
)

// Budget controls access to a capacity. A Budget of capacity 0 is unlimited.
type Budget struct {
	mu        sync.Mutex
	capacity  int64
	allocated int64
}

// NewBudget returns a Budget of capacity c. Returns an error if c < 0.
// Typical usage:
//	b := NewBudget(1024)
//	g, err := b.Reserve(64)
//	// handle err
//	defer g.Release()
func NewBudget(c int64) (*Budget, error) {
	if c < 0 {
		return nil, fmt.Errorf("invalid capacity %d < 0", c)
	}
	return &Budget{capacity: c}, nil
}

// Reserve returns a grant of the indicated size or an error.
// If error is nil, a non-nil *Grant is returned, which the holder must
// Release when finished.
func (b *Budget) Reserve(size int64) (*Grant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if size < 0 {
		return nil, fmt.Errorf("invalid size %d < 0", size)
	}
	if b.capacity > 0 && b.allocated+size > b.capacity {
		return nil, fmt.Errorf(
			"reserve request: %d exceeds capacity: %d (current allocation: %d)", size, b.capacity, b.allocated)
	}
	b.allocated += size
	return &Grant{size: size, b: b}, nil
}

// Available is the unreserved capacity, -1 when unlimited.
func (b *Budget) Available() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.capacity == 0 {
		return -1
	}
	if avail := b.capacity - b.allocated; avail > 0 {
		return avail
	}
	return 0
}

func (b *Budget) Allocated() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocated
}

func (b *Budget) release(g *Grant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocated -= g.size
	if b.allocated < 0 {
		b.allocated = 0
	}
	// unset the grant to prevent accidental double-releasing
	g.size = 0
}

// Grant is some amount of capacity held by one holder.
type Grant struct {
	size int64
	b    *Budget
}

func (g *Grant) Size() int64 {
	if g == nil {
		return 0
	}
	return g.size
}

// Release returns the grant to its Budget. Releasing a nil or previously
// released grant does nothing.
func (g *Grant) Release() {
	if g != nil && g.b != nil {
		g.b.release(g)
	}
}
