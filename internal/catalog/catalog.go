package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
)

// ComboProductID is the catalog placeholder that opens the bundle picker.
const ComboProductID = "ss_combo_200"

const DefaultComboPrice int64 = 200

type Catalog struct {
	products   []domain.Product
	byID       map[string]domain.Product
	rules      map[string]domain.CategoryRule
	modifiers  []string
	comboPrice int64
}

func New(products []domain.Product, rules map[string]domain.CategoryRule, modifiers []string, comboPrice int64) (*Catalog, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: catalog has no products", domain.ErrInvalidProduct)
	}
	if comboPrice <= 0 {
		comboPrice = DefaultComboPrice
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if err := Validate(p); err != nil {
			return nil, err
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %q", domain.ErrInvalidProduct, p.ID)
		}
		byID[p.ID] = cloneProduct(p)
	}

	mergedRules := DefaultRules()
	for category, rule := range rules {
		mergedRules[category] = rule
	}

	return &Catalog{
		products:   cloneProducts(products),
		byID:       byID,
		rules:      mergedRules,
		modifiers:  slices.Clone(modifiers),
		comboPrice: comboPrice,
	}, nil
}

// Validate enforces that a product without fixed prices can be sold by weight.
func Validate(p domain.Product) error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: id and name are required", domain.ErrInvalidProduct)
	}
	if p.Category != domain.CategorySmallDish && p.Category != domain.CategorySmokedShark {
		return fmt.Errorf("%w: product %s has unknown category %q", domain.ErrInvalidProduct, p.ID, p.Category)
	}
	if p.CostPerUnit.IsNegative() {
		return fmt.Errorf("%w: product %s has negative cost", domain.ErrInvalidProduct, p.ID)
	}
	if len(p.FixedPrices) == 0 && !p.PricePerUnit.IsPositive() {
		return fmt.Errorf("%w: product %s needs a price per unit or fixed prices", domain.ErrInvalidProduct, p.ID)
	}
	for _, fp := range p.FixedPrices {
		if fp.Price <= 0 {
			return fmt.Errorf("%w: product %s fixed price %q must be positive", domain.ErrInvalidProduct, p.ID, fp.Label)
		}
	}
	return nil
}

func (c *Catalog) Products() []domain.Product {
	return cloneProducts(c.products)
}

func (c *Catalog) Product(id string) (domain.Product, bool) {
	p, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return cloneProduct(p), true
}

func (c *Catalog) Rule(category string) domain.CategoryRule {
	return c.rules[category]
}

func (c *Catalog) Rules() map[string]domain.CategoryRule {
	out := make(map[string]domain.CategoryRule, len(c.rules))
	for k, v := range c.rules {
		out[k] = v
	}
	return out
}

func (c *Catalog) Modifiers() []string {
	return slices.Clone(c.modifiers)
}

func (c *Catalog) ComboPrice() int64 {
	return c.comboPrice
}

// WithComboPrice returns a copy of the catalog with a different bundle total.
func (c *Catalog) WithComboPrice(price int64) *Catalog {
	if price <= 0 || price == c.comboPrice {
		return c
	}
	next := *c
	next.comboPrice = price
	return &next
}

func DefaultRules() map[string]domain.CategoryRule {
	return map[string]domain.CategoryRule{
		domain.CategorySmallDish:   {StandardBoxPrice: 100, MinCustomPrice: 50},
		domain.CategorySmokedShark: {StandardBoxPrice: 100, MinCustomPrice: 100},
	}
}

func DefaultModifiers() []string {
	return []string{"多薑絲", "不加醬", "加辣", "芥末多"}
}

// Default is the stall's built-in menu.
func Default() *Catalog {
	products := []domain.Product{
		{
			ID: "sd_driedfish", Name: "小魚干", Category: domain.CategorySmallDish,
			CostPerUnit: dec(235), PricePerUnit: dec(650),
			FixedPrices: []domain.FixedPrice{{Label: "標準盒", Price: 130}, {Label: "特惠包", Price: 180}},
		},
		weighed("sd_jellyfish", "海蜇皮", domain.CategorySmallDish, 130, 300),
		weighed("sd_pigscalp", "豬頭皮", domain.CategorySmallDish, 100, 300),
		weighed("sd_pigliver", "麻油豬肝", domain.CategorySmallDish, 80, 300),
		weighed("sd_peanuts", "蒜拌花生", domain.CategorySmallDish, 100, 300),
		weighed("sd_chickenfeet", "豆瓣滷鳳爪", domain.CategorySmallDish, 90, 300),
		weighed("sd_fishskin", "醋溜魚皮", domain.CategorySmallDish, 90, 300),
		{
			ID: ComboProductID, Name: "綜合鯊魚煙", Category: domain.CategorySmokedShark,
			FixedPrices: []domain.FixedPrice{{Label: "固定", Price: DefaultComboPrice}},
		},
		weighed("ss_sharkskin", "鯊魚皮", domain.CategorySmokedShark, 120, 360),
		weighed("ss_sharkbelly", "鯊魚肚", domain.CategorySmokedShark, 120, 360),
		weighed("ss_finhead", "鯊魚翅頭", domain.CategorySmokedShark, 250, 550),
		weighed("ss_halftendon", "鯊魚半筋半肉", domain.CategorySmokedShark, 100, 360),
		weighed("ss_bellymeat", "鯊魚腹肉", domain.CategorySmokedShark, 150, 360),
		weighed("ss_roe", "紅甘魚卵", domain.CategorySmokedShark, 400, 700),
	}

	c, err := New(products, DefaultRules(), DefaultModifiers(), DefaultComboPrice)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

func weighed(id, name, category string, cost, price int64) domain.Product {
	return domain.Product{ID: id, Name: name, Category: category, CostPerUnit: dec(cost), PricePerUnit: dec(price)}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func cloneProduct(p domain.Product) domain.Product {
	p.FixedPrices = slices.Clone(p.FixedPrices)
	return p
}

func cloneProducts(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = cloneProduct(p)
	}
	return out
}
