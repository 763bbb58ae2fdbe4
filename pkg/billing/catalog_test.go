package billing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/billing"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := billing.DefaultCatalog()
	require.NoError(t, c.Validate())

	tests := []struct {
		price   int64
		credits int64
	}{
		{10, 500},
		{20, 1200},
		{35, 2500},
	}
	for _, tt := range tests {
		p, err := c.PackByPrice(tt.price)
		require.NoError(t, err)
		assert.Equal(t, tt.credits, p.Credits)
	}

	_, err := c.PackByPrice(15)
	assert.ErrorIs(t, err, billing.ErrUnknownPack)
}

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		want    billing.Catalog
		wantErr bool
	}{
		{
			name: "valid",
			yaml: "currency: USD\nsubscription_price: 12\ncredit_packs:\n  - price: 5\n    credits: 200\n",
			want: billing.Catalog{Currency: "usd", SubscriptionPrice: 12, Packs: []billing.Pack{{Price: 5, Credits: 200}}},
		},
		{name: "missing currency", yaml: "subscription_price: 12\n", wantErr: true},
		{name: "zero subscription price", yaml: "currency: usd\n", wantErr: true},
		{name: "duplicate pack price", yaml: "currency: usd\nsubscription_price: 1\ncredit_packs:\n  - {price: 5, credits: 1}\n  - {price: 5, credits: 2}\n", wantErr: true},
		{name: "negative credits", yaml: "currency: usd\nsubscription_price: 1\ncredit_packs:\n  - {price: 5, credits: -1}\n", wantErr: true},
		{name: "not yaml", yaml: "currency: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := billing.ParseCatalog([]byte(tt.yaml))
			if tt.wantErr {
				assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("empty path uses defaults", func(t *testing.T) {
		t.Parallel()
		c, err := billing.LoadCatalog("")
		require.NoError(t, err)
		assert.Equal(t, billing.DefaultCatalog(), c)
	})

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("currency: eur\nsubscription_price: 9\n"), 0o600))

		c, err := billing.LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, "eur", c.Currency)
		assert.Equal(t, int64(9), c.SubscriptionPrice)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := billing.LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, billing.ErrInvalidCatalog)
	})
}
