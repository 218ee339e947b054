package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

// fakeStore mimics a database with row locks: LockForUpdate blocks while
// another open unit of work holds the row, and writes become visible only on
// Commit.
type fakeStore struct {
	mu       sync.Mutex
	stock    map[int64]int
	rowLocks map[int64]*sync.Mutex
	sales    []domain.Sale
	lines    map[int64][]domain.SaleLine
	nextID   int64
	begins   int
	units    []*fakeUnit

	beginErr     error
	lockErr      map[int64]error
	headerErr    error
	lineErr      error
	decrementErr error
	commitErr    error
	onBegin      func()
}

func newFakeStore(initial map[int64]int) *fakeStore {
	cp := make(map[int64]int, len(initial))
	for k, v := range initial {
		cp[k] = v
	}
	return &fakeStore{
		stock:    cp,
		rowLocks: make(map[int64]*sync.Mutex),
		lines:    make(map[int64][]domain.SaleLine),
		lockErr:  make(map[int64]error),
	}
}

func (s *fakeStore) Begin(ctx context.Context) (UnitOfWork, error) {
	s.mu.Lock()
	s.begins++
	s.mu.Unlock()

	if s.beginErr != nil {
		return nil, s.beginErr
	}
	if s.onBegin != nil {
		s.onBegin()
	}

	u := &fakeUnit{store: s, pending: make(map[int64]int)}
	s.mu.Lock()
	s.units = append(s.units, u)
	s.mu.Unlock()
	return u, nil
}

func (s *fakeStore) stockOf(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[id]
}

func (s *fakeStore) saleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

func (s *fakeStore) rowLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[id] = m
	}
	return m
}

func (s *fakeStore) lastUnit() *fakeUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.units) == 0 {
		return nil
	}
	return s.units[len(s.units)-1]
}

type fakeUnit struct {
	store *fakeStore

	held    []int64
	locked  []int64
	pending map[int64]int
	sale    *domain.Sale
	lines   []domain.SaleLine

	committed  bool
	rolledBack bool
	done       bool
}

func (u *fakeUnit) Inventory() InventoryStore { return u }
func (u *fakeUnit) Ledger() SaleLedger         { return u }

func (u *fakeUnit) LockForUpdate(ctx context.Context, productID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	u.locked = append(u.locked, productID)
	if err := u.store.lockErr[productID]; err != nil {
		return 0, err
	}

	u.store.mu.Lock()
	_, ok := u.store.stock[productID]
	u.store.mu.Unlock()
	if !ok {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}

	u.store.rowLock(productID).Lock()
	u.held = append(u.held, productID)
	return u.store.stockOf(productID), nil
}

func (u *fakeUnit) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.store.decrementErr != nil {
		return u.store.decrementErr
	}
	if u.store.stockOf(productID)-u.pending[productID]-quantity < 0 {
		return errors.New(`new row for relation "products" violates check constraint "products_quantity_check"`)
	}
	u.pending[productID] += quantity
	return nil
}

func (u *fakeUnit) InsertSaleHeader(ctx context.Context, total money.Money) (domain.Sale, error) {
	if u.store.headerErr != nil {
		return domain.Sale{}, u.store.headerErr
	}
	u.store.mu.Lock()
	u.store.nextID++
	id := u.store.nextID
	u.store.mu.Unlock()

	u.sale = &domain.Sale{ID: id, CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), Total: total}
	return *u.sale, nil
}

func (u *fakeUnit) InsertSaleLine(ctx context.Context, saleID int64, line domain.SaleLine) error {
	if u.store.lineErr != nil {
		return u.store.lineErr
	}
	u.lines = append(u.lines, line)
	return nil
}

func (u *fakeUnit) Commit(ctx context.Context) error {
	if u.store.commitErr != nil {
		return u.store.commitErr
	}
	u.store.mu.Lock()
	for id, dec := range u.pending {
		u.store.stock[id] -= dec
	}
	if u.sale != nil {
		u.store.sales = append(u.store.sales, *u.sale)
		u.store.lines[u.sale.ID] = u.lines
	}
	u.store.mu.Unlock()

	u.committed = true
	u.release()
	return nil
}

func (u *fakeUnit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.rolledBack = true
	u.release()
	return nil
}

func (u *fakeUnit) release() {
	for _, id := range u.held {
		u.store.rowLock(id).Unlock()
	}
	u.held = nil
	u.done = true
}

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingRecorder) CheckoutFinished(outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
