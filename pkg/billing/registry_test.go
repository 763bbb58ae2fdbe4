package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/billing"
	"github.com/dmitrymomot/creditgate/pkg/entitlement"
	"github.com/dmitrymomot/creditgate/svc/memstore"
)

// seqProvider hands out a fresh invoice per call.
type seqProvider struct {
	mu sync.Mutex
	n  int
}

func (p *seqProvider) CreateInvoice(context.Context, billing.InvoiceRequest) (billing.Invoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	id := fmt.Sprintf("inv-%d", p.n)
	return billing.Invoice{ID: id, URL: "https://pay/" + id}, nil
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateInvoice(ctx context.Context, req billing.InvoiceRequest) (billing.Invoice, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(billing.Invoice), args.Error(1)
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func creditsRequest(userID string) billing.CreateRequest {
	return billing.CreateRequest{
		UserID:           userID,
		Kind:             billing.KindCredits,
		Amount:           1000,
		Currency:         "usd",
		CreditedQuantity: 500,
		Description:      "500 credits",
	}
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	t.Run("records pending intent", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		provider := new(MockProvider)
		provider.On("CreateInvoice", mock.Anything, billing.InvoiceRequest{
			OrderID:     "cli_u1_credits_1773144000",
			Description: "500 credits",
			Amount:      1000,
			Currency:    "usd",
		}).Return(billing.Invoice{ID: "inv-1", URL: "https://pay/inv-1"}, nil).Once()

		at := now
		reg := billing.NewRegistry(store, provider, billing.WithRegistryClock(clock(&at)))
		in, reused, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)
		assert.False(t, reused)
		assert.Equal(t, billing.IntentPending, in.Status)
		assert.Equal(t, "cli_u1_credits_1773144000", in.OrderID)

		stored, err := reg.Find(context.Background(), "inv-1")
		require.NoError(t, err)
		assert.Equal(t, in, stored)
		provider.AssertExpectations(t)
	})

	t.Run("reuses fresh identical pending intent", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		provider := new(MockProvider)
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Return(billing.Invoice{ID: "inv-1", URL: "https://pay/inv-1"}, nil).Once()

		at := now
		reg := billing.NewRegistry(store, provider, billing.WithRegistryClock(clock(&at)))
		first, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)

		at = now.Add(10 * time.Minute)
		second, reused, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)
		assert.True(t, reused)
		assert.Equal(t, first.InvoiceID, second.InvoiceID)
		provider.AssertNumberOfCalls(t, "CreateInvoice", 1)
	})

	t.Run("supersedes stale pending intent", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		provider := new(MockProvider)
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Return(billing.Invoice{ID: "inv-1", URL: "https://pay/inv-1"}, nil).Once()
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Return(billing.Invoice{ID: "inv-2", URL: "https://pay/inv-2"}, nil).Once()

		at := now
		reg := billing.NewRegistry(store, provider, billing.WithRegistryClock(clock(&at)))
		_, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)

		at = now.Add(2 * time.Hour)
		in, reused, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)
		assert.False(t, reused)
		assert.Equal(t, "inv-2", in.InvoiceID)

		old, err := reg.Find(context.Background(), "inv-1")
		require.NoError(t, err)
		assert.Equal(t, billing.IntentExpired, old.Status)
		assert.Equal(t, billing.ProviderStatusSuperseded, old.ProviderStatus)
	})

	t.Run("different pack supersedes", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		provider := new(MockProvider)
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Return(billing.Invoice{ID: "inv-1", URL: "https://pay/inv-1"}, nil).Once()
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Return(billing.Invoice{ID: "inv-2", URL: "https://pay/inv-2"}, nil).Once()

		reg := billing.NewRegistry(store, provider)
		_, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)

		bigger := creditsRequest("u1")
		bigger.Amount, bigger.CreditedQuantity = 2000, 1200
		in, reused, err := reg.Create(context.Background(), bigger)
		require.NoError(t, err)
		assert.False(t, reused)
		assert.Equal(t, int64(1200), in.CreditedQuantity)
	})

	t.Run("provider failure leaves no intent", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		provider := new(MockProvider)
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Return(billing.Invoice{}, context.DeadlineExceeded).Once()

		reg := billing.NewRegistry(store, provider)
		_, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		assert.ErrorIs(t, err, billing.ErrProviderUnavailable)

		items, err := reg.List(context.Background(), "u1", 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("provider call is bounded", func(t *testing.T) {
		t.Parallel()
		provider := new(MockProvider)
		provider.On("CreateInvoice", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				ctx := args.Get(0).(context.Context)
				_, ok := ctx.Deadline()
				assert.True(t, ok)
			}).
			Return(billing.Invoice{ID: "inv-1", URL: "u"}, nil).Once()

		reg := billing.NewRegistry(memstore.New(), provider, billing.WithProviderTimeout(time.Second))
		_, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		require.NoError(t, err)
	})

	t.Run("validates request", func(t *testing.T) {
		t.Parallel()
		reg := billing.NewRegistry(memstore.New(), new(MockProvider))

		bad := []billing.CreateRequest{
			{Kind: billing.KindCredits, Amount: 1, Currency: "usd", CreditedQuantity: 1},
			{UserID: "u1", Kind: billing.KindCredits, Amount: 0, Currency: "usd", CreditedQuantity: 1},
			{UserID: "u1", Kind: billing.KindCredits, Amount: 1, Currency: "usd"},
			{UserID: "u1", Kind: billing.KindSubscription, Amount: 1, Currency: "usd", CreditedQuantity: 5},
		}
		for _, req := range bad {
			_, _, err := reg.Create(context.Background(), req)
			assert.ErrorIs(t, err, billing.ErrInvalidIntent)
		}

		_, _, err := reg.Create(context.Background(), billing.CreateRequest{UserID: "u1", Kind: "gift", Amount: 1, Currency: "usd"})
		assert.ErrorIs(t, err, billing.ErrInvalidKind)

		_, _, err = reg.Create(context.Background(), billing.CreateRequest{UserID: "a_b", Kind: billing.KindSubscription, Amount: 1, Currency: "usd"})
		assert.ErrorIs(t, err, billing.ErrMalformedOrder)
	})

	t.Run("no provider configured", func(t *testing.T) {
		t.Parallel()
		reg := billing.NewRegistry(memstore.New(), nil)
		_, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		assert.ErrorIs(t, err, billing.ErrProviderNotConfig)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		store := memstore.New()
		store.Fail(errors.New("connection reset"))
		reg := billing.NewRegistry(store, new(MockProvider))
		_, _, err := reg.Create(context.Background(), creditsRequest("u1"))
		assert.ErrorIs(t, err, billing.ErrStoreUnavailable)
	})
}

func TestRegistryCreateConcurrent(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	provider := &seqProvider{}
	reg := billing.NewRegistry(store, provider)

	var wg sync.WaitGroup
	results := make(chan billing.Intent, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in, _, err := reg.Create(context.Background(), creditsRequest("u1"))
			if assert.NoError(t, err) {
				results <- in
			}
		}()
	}
	wg.Wait()
	close(results)

	pending, err := store.FindPendingIntent(context.Background(), "u1", billing.KindCredits)
	require.NoError(t, err)
	for in := range results {
		// Every caller ends up with a real invoice; only one stays pending.
		assert.NotEmpty(t, in.InvoiceURL)
	}
	assert.NotEmpty(t, pending.InvoiceID)
}

func TestRegistryMarkStatus(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, kind billing.Kind) (*memstore.Store, *billing.Registry) {
		t.Helper()
		store := memstore.New()
		store.Put(entitlement.Entitlement{UserID: "u1", Status: entitlement.StatusPending, CreditBalance: 5})
		require.NoError(t, store.CreateIntent(context.Background(), billing.Intent{
			InvoiceID: "inv-1", UserID: "u1", Kind: kind, Amount: 1000, Currency: "usd",
			Status: billing.IntentPending, CreatedAt: now,
		}))
		return store, billing.NewRegistry(store, nil)
	}

	t.Run("failed subscription reverts pending", func(t *testing.T) {
		t.Parallel()
		store, reg := setup(t, billing.KindSubscription)

		in, err := reg.MarkStatus(context.Background(), "inv-1", billing.IntentFailed, "p-1", "failed")
		require.NoError(t, err)
		assert.Equal(t, billing.IntentFailed, in.Status)
		assert.NotNil(t, in.ResolvedAt)

		e, _ := store.Snapshot("u1")
		assert.Equal(t, entitlement.StatusFree, e.Status)
	})

	t.Run("failed credits keep subscription flag", func(t *testing.T) {
		t.Parallel()
		store, reg := setup(t, billing.KindCredits)

		_, err := reg.MarkStatus(context.Background(), "inv-1", billing.IntentExpired, "", "expired")
		require.NoError(t, err)

		e, _ := store.Snapshot("u1")
		assert.Equal(t, entitlement.StatusPending, e.Status)
	})

	t.Run("terminal status is final", func(t *testing.T) {
		t.Parallel()
		_, reg := setup(t, billing.KindCredits)

		_, err := reg.MarkStatus(context.Background(), "inv-1", billing.IntentExpired, "", "expired")
		require.NoError(t, err)
		_, err = reg.MarkStatus(context.Background(), "inv-1", billing.IntentFailed, "", "failed")
		assert.ErrorIs(t, err, billing.ErrAlreadyResolved)
	})

	t.Run("back to pending is invalid", func(t *testing.T) {
		t.Parallel()
		_, reg := setup(t, billing.KindCredits)
		_, err := reg.MarkStatus(context.Background(), "inv-1", billing.IntentPending, "", "")
		assert.ErrorIs(t, err, billing.ErrInvalidIntent)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		t.Parallel()
		_, reg := setup(t, billing.KindCredits)
		_, err := reg.MarkStatus(context.Background(), "nope", billing.IntentFailed, "", "")
		assert.ErrorIs(t, err, billing.ErrIntentNotFound)
	})
}
