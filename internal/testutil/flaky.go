package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/mercatus-exchange/mercatus/internal/ledger"
)

// ErrInjected is returned by FlakyStore for induced failures.
var ErrInjected = errors.New("injected failure")

// FlakyStore wraps a ledger.Store and fails a configurable number of InTx
// calls. It exercises the best-effort settlement path: a failed fill must
// not stop the engine from matching against later resting orders.
type FlakyStore struct {
	ledger.Store

	mu       sync.Mutex
	failures int
	calls    int
}

// NewFlakyStore wraps store. No failures are armed initially.
func NewFlakyStore(store ledger.Store) *FlakyStore {
	return &FlakyStore{Store: store}
}

// FailNext arms the wrapper to fail the next n InTx calls.
func (f *FlakyStore) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

// InTxCalls reports how many InTx calls have been made.
func (f *FlakyStore) InTxCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// InTx fails with ErrInjected while armed, otherwise delegates.
func (f *FlakyStore) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.Store.InTx(ctx, fn)
}
