package cart

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrCheckoutInProgress = errors.New("checkout already in progress for cart")
)

// Registry holds the open checkout sessions of this process. Its mutex guards
// the map and the carts in it; it is never held across database calls.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*Cart
	// checkouts marks sessions with a finalization running.
	checkouts map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		carts:     make(map[string]*Cart),
		checkouts: make(map[string]struct{}),
	}
}

// Create opens an empty cart and returns its session id.
func (r *Registry) Create() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.carts[id] = New()
	r.mu.Unlock()
	return id
}

// Update runs fn against the live cart.
func (r *Registry) Update(id string, fn func(c *Cart) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCartNotFound, id)
	}
	return fn(c)
}

// Snapshot returns a deep copy that the caller may use without holding the
// registry.
func (r *Registry) Snapshot(id string) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCartNotFound, id)
	}
	return c.Clone(), nil
}

// BeginCheckout marks the session as being finalized and returns a snapshot to
// finalize. Until release is called a second BeginCheckout for the same id
// fails with ErrCheckoutInProgress. release is safe to call more than once.
func (r *Registry) BeginCheckout(id string) (*Cart, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCartNotFound, id)
	}
	if _, busy := r.checkouts[id]; busy {
		return nil, nil, fmt.Errorf("%w: %s", ErrCheckoutInProgress, id)
	}
	r.checkouts[id] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.checkouts, id)
			r.mu.Unlock()
		})
	}
	return c.Clone(), release, nil
}

// ClearIfUnchanged empties the cart when it is still at version, i.e. nobody
// edited it while a snapshot was being checked out. It reports whether the
// cart was cleared.
func (r *Registry) ClearIfUnchanged(id string, version uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[id]
	if !ok || c.Version() != version {
		return false
	}
	c.Clear()
	return true
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrCartNotFound, id)
	}
	delete(r.carts, id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}
