package pricing

import (
	"fmt"
	"slices"
	"strings"

	"haiwei-pos/backend/internal/domain"
)

type Component string

const (
	ComponentMeat    Component = "meat"
	ComponentSkin    Component = "skin"
	ComponentBelly   Component = "belly"
	ComponentFinHead Component = "finhead"
	ComponentRoe     Component = "roe"
)

const (
	MinComboComponents = 2
	MaxComboComponents = 4
)

// componentProducts pins each combo component to its catalog product.
var componentProducts = map[Component]string{
	ComponentMeat:    "ss_bellymeat",
	ComponentSkin:    "ss_sharkskin",
	ComponentBelly:   "ss_sharkbelly",
	ComponentFinHead: "ss_finhead",
	ComponentRoe:     "ss_roe",
}

var componentOrder = []Component{
	ComponentMeat,
	ComponentSkin,
	ComponentBelly,
	ComponentFinHead,
	ComponentRoe,
}

func Components() []Component {
	return slices.Clone(componentOrder)
}

func ComponentProductID(c Component) (string, bool) {
	id, ok := componentProducts[c]
	return id, ok
}

func ParseComponent(raw string) (Component, error) {
	c := Component(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := componentProducts[c]; !ok {
		return "", fmt.Errorf("%w: unknown component %q", domain.ErrInvalidComboSelection, raw)
	}
	return c, nil
}

type Allocation struct {
	Component Component `json:"component"`
	ProductID string    `json:"product_id"`
	Price     int64     `json:"price"`
}

// Allocate splits a bundle total across the selected components. Results keep
// the selection order and always sum to total.
func Allocate(total int64, selected []Component) ([]Allocation, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: negative bundle total", domain.ErrInvalidComboSelection)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", domain.ErrInvalidComboSelection)
	}
	seen := make(map[Component]struct{}, len(selected))
	for _, c := range selected {
		if _, ok := componentProducts[c]; !ok {
			return nil, fmt.Errorf("%w: unknown component %q", domain.ErrInvalidComboSelection, c)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: duplicate component %q", domain.ErrInvalidComboSelection, c)
		}
		seen[c] = struct{}{}
	}

	var prices []int64
	switch {
	case len(selected) == 3 && slices.Contains(selected, ComponentMeat):
		prices = allocateMeatAnchored(total, selected)
	default:
		// counts 2 and 4 divide evenly for the stall's bundle price; the
		// remainder rule keeps the sum exact for any other total
		prices = evenSplit(total, len(selected))
	}

	out := make([]Allocation, len(selected))
	for i, c := range selected {
		out[i] = Allocation{Component: c, ProductID: componentProducts[c], Price: prices[i]}
	}
	return out, nil
}

// allocateMeatAnchored prices a three-item combo that includes meat: meat
// takes two fifths, roe (when present) seven twentieths, the rest splits what
// is left with the first non-anchor absorbing any remainder.
func allocateMeatAnchored(total int64, selected []Component) []int64 {
	prices := make([]int64, len(selected))
	meat := total * 2 / 5
	remaining := total - meat

	others := make([]int, 0, 2)
	for i, c := range selected {
		switch c {
		case ComponentMeat:
			prices[i] = meat
		case ComponentRoe:
			roe := total * 7 / 20
			prices[i] = roe
			remaining -= roe
		default:
			others = append(others, i)
		}
	}

	shares := evenSplit(remaining, len(others))
	for j, idx := range others {
		prices[idx] = shares[j]
	}
	return prices
}

func evenSplit(total int64, count int) []int64 {
	if count <= 0 {
		return nil
	}
	base := total / int64(count)
	prices := make([]int64, count)
	for i := range prices {
		prices[i] = base
	}
	prices[0] = total - base*int64(count-1)
	return prices
}

// ComboSelection tracks the components picked for one bundle. Adding past
// the cap or re-adding a member is ignored.
type ComboSelection struct {
	items []Component
}

func (s *ComboSelection) Add(c Component) error {
	if _, ok := componentProducts[c]; !ok {
		return fmt.Errorf("%w: unknown component %q", domain.ErrInvalidComboSelection, c)
	}
	if slices.Contains(s.items, c) || len(s.items) >= MaxComboComponents {
		return nil
	}
	s.items = append(s.items, c)
	return nil
}

func (s *ComboSelection) Remove(c Component) {
	s.items = slices.DeleteFunc(s.items, func(item Component) bool { return item == c })
}

func (s *ComboSelection) Toggle(c Component) error {
	if slices.Contains(s.items, c) {
		s.Remove(c)
		return nil
	}
	return s.Add(c)
}

func (s *ComboSelection) Len() int {
	return len(s.items)
}

func (s *ComboSelection) Items() []Component {
	return slices.Clone(s.items)
}

func (s *ComboSelection) Confirm() ([]Component, error) {
	if len(s.items) < MinComboComponents {
		return nil, fmt.Errorf("%w: %d selected", domain.ErrInsufficientComboSelection, len(s.items))
	}
	return s.Items(), nil
}
