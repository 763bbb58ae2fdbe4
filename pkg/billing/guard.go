package billing

import (
	"context"
	"sync"
)

// DeliveryGuard serialises concurrent deliveries of the same payment event.
// It only turns a racing duplicate into a retryable rejection; exactly-once
// application is enforced by the settlement compare-and-set.
type DeliveryGuard interface {
	// Acquire returns ErrDeliveryInProgress when key is already held.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// DeliveryKey identifies one payment event.
func DeliveryKey(invoiceID, paymentID string) string {
	return invoiceID + ":" + paymentID
}

// LocalGuard is an in-process DeliveryGuard for single-instance deployments.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalGuard creates an empty in-process guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[key]; busy {
		return nil, ErrDeliveryInProgress
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
