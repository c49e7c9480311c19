package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"haiwei-pos/backend/internal/domain"
)

type fileCatalog struct {
	ComboPrice int64               `mapstructure:"combo_price"`
	Modifiers  []string            `mapstructure:"modifiers"`
	Rules      map[string]fileRule `mapstructure:"rules"`
	Products   []fileProduct       `mapstructure:"products"`
}

type fileRule struct {
	StandardBoxPrice int64 `mapstructure:"standard_box_price"`
	MinCustomPrice   int64 `mapstructure:"min_custom_price"`
}

type fileProduct struct {
	ID           string           `mapstructure:"id"`
	Name         string           `mapstructure:"name"`
	Category     string           `mapstructure:"category"`
	CostPerUnit  string           `mapstructure:"cost_per_unit"`
	PricePerUnit string           `mapstructure:"price_per_unit"`
	FixedPrices  []fileFixedPrice `mapstructure:"fixed_prices"`
}

type fileFixedPrice struct {
	Label string `mapstructure:"label"`
	Price int64  `mapstructure:"price"`
}

// Load reads a catalog file (YAML, JSON or TOML by extension). An empty path
// yields the built-in menu.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var fc fileCatalog
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}

	products := make([]domain.Product, 0, len(fc.Products))
	for _, fp := range fc.Products {
		cost, err := parseAmount(fp.CostPerUnit)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s cost: %v", domain.ErrInvalidProduct, fp.ID, err)
		}
		price, err := parseAmount(fp.PricePerUnit)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s price: %v", domain.ErrInvalidProduct, fp.ID, err)
		}
		fixed := make([]domain.FixedPrice, 0, len(fp.FixedPrices))
		for _, f := range fp.FixedPrices {
			fixed = append(fixed, domain.FixedPrice{Label: f.Label, Price: f.Price})
		}
		products = append(products, domain.Product{
			ID:           strings.TrimSpace(fp.ID),
			Name:         strings.TrimSpace(fp.Name),
			Category:     strings.TrimSpace(fp.Category),
			CostPerUnit:  cost,
			PricePerUnit: price,
			FixedPrices:  fixed,
		})
	}

	rules := make(map[string]domain.CategoryRule, len(fc.Rules))
	for category, r := range fc.Rules {
		rules[category] = domain.CategoryRule{StandardBoxPrice: r.StandardBoxPrice, MinCustomPrice: r.MinCustomPrice}
	}

	modifiers := fc.Modifiers
	if len(modifiers) == 0 {
		modifiers = DefaultModifiers()
	}

	return New(products, rules, modifiers, fc.ComboPrice)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
