package billing

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinorUnitsPerMajor converts catalog prices (whole currency units) to
// intent amounts (cents).
const MinorUnitsPerMajor = 100

// Pack is a purchasable bundle of credits.
type Pack struct {
	Price   int64 `yaml:"price" json:"price"`
	Credits int64 `yaml:"credits" json:"credits"`
}

// Catalog lists what can be bought. Prices are whole units of Currency.
type Catalog struct {
	Currency          string `yaml:"currency" json:"currency"`
	SubscriptionPrice int64  `yaml:"subscription_price" json:"subscription_price"`
	Packs             []Pack `yaml:"credit_packs" json:"credit_packs"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		Currency:          "usd",
		SubscriptionPrice: 10,
		Packs: []Pack{
			{Price: 10, Credits: 500},
			{Price: 20, Credits: 1200},
			{Price: 35, Credits: 2500},
		},
	}
}

// LoadCatalog reads a YAML catalog from path. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	c.Currency = strings.ToLower(strings.TrimSpace(c.Currency))
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks prices and credits are positive and pack prices unique.
func (c Catalog) Validate() error {
	if c.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidCatalog)
	}
	if c.SubscriptionPrice <= 0 {
		return fmt.Errorf("%w: subscription price must be positive", ErrInvalidCatalog)
	}
	seen := make(map[int64]struct{}, len(c.Packs))
	for _, p := range c.Packs {
		if p.Price <= 0 || p.Credits <= 0 {
			return fmt.Errorf("%w: pack %d/%d must have positive price and credits", ErrInvalidCatalog, p.Price, p.Credits)
		}
		if _, dup := seen[p.Price]; dup {
			return fmt.Errorf("%w: duplicate pack price %d", ErrInvalidCatalog, p.Price)
		}
		seen[p.Price] = struct{}{}
	}
	return nil
}

// PackByPrice finds the pack sold for price whole units.
func (c Catalog) PackByPrice(price int64) (Pack, error) {
	i := slices.IndexFunc(c.Packs, func(p Pack) bool { return p.Price == price })
	if i < 0 {
		return Pack{}, fmt.Errorf("%w: %d %s", ErrUnknownPack, price, c.Currency)
	}
	return c.Packs[i], nil
}
