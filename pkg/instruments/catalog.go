// Package instruments holds the immutable reference catalog of tradable
// pairs. The built-in set mirrors the product's default offering; an optional
// YAML overlay can replace it at startup.
package instruments

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrUnknownInstrument is returned when an id is not in the catalog.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Category distinguishes pricing sources and display treatment.
type Category string

const (
	CategoryForex  Category = "Forex"
	CategoryCrypto Category = "Crypto"
)

// Instrument is immutable reference data for one tradable pair.
type Instrument struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Category  Category `yaml:"category" json:"category"`
	BasePrice float64  `yaml:"base_price" json:"base_price"`
	Precision int      `yaml:"precision" json:"precision"`
}

// Catalog is a lookup over the loaded instrument set.
type Catalog struct {
	byID  map[string]Instrument
	order []string
}

var builtin = []Instrument{
	// Forex
	{ID: "EUR/USD", Name: "EUR/USD", Category: CategoryForex, BasePrice: 1.0850, Precision: 5},
	{ID: "EUR/JPY", Name: "EUR/JPY", Category: CategoryForex, BasePrice: 169.50, Precision: 3},
	{ID: "CHF/JPY", Name: "CHF/JPY", Category: CategoryForex, BasePrice: 175.20, Precision: 3},
	{ID: "GBP/USD", Name: "GBP/USD", Category: CategoryForex, BasePrice: 1.2730, Precision: 5},
	{ID: "AUD/USD", Name: "AUD/USD", Category: CategoryForex, BasePrice: 0.6650, Precision: 5},
	{ID: "USD/CAD", Name: "USD/CAD", Category: CategoryForex, BasePrice: 1.3660, Precision: 5},
	{ID: "USD/JPY", Name: "USD/JPY", Category: CategoryForex, BasePrice: 157.40, Precision: 3},
	// Crypto
	{ID: "BTC-USD", Name: "Bitcoin", Category: CategoryCrypto, BasePrice: 65000, Precision: 2},
	{ID: "ETH-USD", Name: "Ethereum", Category: CategoryCrypto, BasePrice: 3500, Precision: 2},
	{ID: "XRP-USD", Name: "Ripple", Category: CategoryCrypto, BasePrice: 0.49, Precision: 4},
	{ID: "LTC-USD", Name: "Litecoin", Category: CategoryCrypto, BasePrice: 74, Precision: 2},
	{ID: "SOL-USD", Name: "Solana", Category: CategoryCrypto, BasePrice: 145, Precision: 2},
}

// Builtin returns the compiled-in catalog.
func Builtin() *Catalog {
	return newCatalog(builtin)
}

type overlayFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// LoadFile reads an instrument catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Instruments) == 0 {
		return nil, fmt.Errorf("no instruments in %s", path)
	}
	for _, inst := range file.Instruments {
		if inst.ID == "" || inst.BasePrice <= 0 {
			return nil, fmt.Errorf("invalid instrument entry %q", inst.ID)
		}
	}
	return newCatalog(file.Instruments), nil
}

func newCatalog(list []Instrument) *Catalog {
	c := &Catalog{byID: make(map[string]Instrument, len(list))}
	for _, inst := range list {
		if _, dup := c.byID[inst.ID]; dup {
			continue
		}
		c.byID[inst.ID] = inst
		c.order = append(c.order, inst.ID)
	}
	return c
}

// Get returns the instrument for id.
func (c *Catalog) Get(id string) (Instrument, bool) {
	inst, ok := c.byID[id]
	return inst, ok
}

// All returns instruments in catalog order.
func (c *Catalog) All() []Instrument {
	out := make([]Instrument, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len reports the catalog size.
func (c *Catalog) Len() int { return len(c.order) }
