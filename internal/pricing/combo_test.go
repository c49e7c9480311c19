package pricing

import (
	"errors"
	"testing"

	"haiwei-pos/backend/internal/domain"
)

func pricesOf(t *testing.T, total int64, selected ...Component) map[Component]int64 {
	t.Helper()
	allocs, err := Allocate(total, selected)
	if err != nil {
		t.Fatalf("allocate %v: %v", selected, err)
	}
	out := make(map[Component]int64, len(allocs))
	for i, a := range allocs {
		if a.Component != selected[i] {
			t.Fatalf("allocation order changed: %v", allocs)
		}
		out[a.Component] = a.Price
	}
	return out
}

func TestAllocateThreeWithMeatAndRoe(t *testing.T) {
	got := pricesOf(t, 200, ComponentMeat, ComponentRoe, ComponentSkin)
	if got[ComponentMeat] != 80 || got[ComponentRoe] != 70 || got[ComponentSkin] != 50 {
		t.Fatalf("unexpected allocation %v", got)
	}
}

func TestAllocateThreeWithMeatNoRoe(t *testing.T) {
	got := pricesOf(t, 200, ComponentSkin, ComponentMeat, ComponentBelly)
	if got[ComponentMeat] != 80 || got[ComponentSkin] != 60 || got[ComponentBelly] != 60 {
		t.Fatalf("unexpected allocation %v", got)
	}
}

func TestAllocateThreeWithoutMeatFirstAbsorbsRemainder(t *testing.T) {
	got := pricesOf(t, 200, ComponentSkin, ComponentBelly, ComponentFinHead)
	if got[ComponentSkin] != 68 || got[ComponentBelly] != 66 || got[ComponentFinHead] != 66 {
		t.Fatalf("unexpected allocation %v", got)
	}

	got = pricesOf(t, 200, ComponentFinHead, ComponentRoe, ComponentSkin)
	if got[ComponentFinHead] != 68 || got[ComponentRoe] != 66 {
		t.Fatalf("roe without meat should split evenly, got %v", got)
	}
}

func TestAllocateTwoAndFour(t *testing.T) {
	got := pricesOf(t, 200, ComponentMeat, ComponentBelly)
	if got[ComponentMeat] != 100 || got[ComponentBelly] != 100 {
		t.Fatalf("unexpected allocation %v", got)
	}

	got = pricesOf(t, 200, ComponentMeat, ComponentSkin, ComponentBelly, ComponentFinHead)
	for c, price := range got {
		if price != 50 {
			t.Fatalf("expected 50 for %s, got %d", c, price)
		}
	}
}

func TestAllocateFallbackForSingleAndFive(t *testing.T) {
	got := pricesOf(t, 200, ComponentRoe)
	if got[ComponentRoe] != 200 {
		t.Fatalf("expected single component to take the whole total, got %v", got)
	}

	got = pricesOf(t, 203, Components()...)
	if got[ComponentMeat] != 43 || got[ComponentRoe] != 40 {
		t.Fatalf("expected 43 then 40s, got %v", got)
	}
}

func TestAllocateSumAlwaysEqualsTotal(t *testing.T) {
	all := Components()
	var subsets [][]Component
	for mask := 1; mask < 1<<len(all); mask++ {
		var subset []Component
		for i, c := range all {
			if mask&(1<<i) != 0 {
				subset = append(subset, c)
			}
		}
		if len(subset) >= MinComboComponents && len(subset) <= MaxComboComponents {
			subsets = append(subsets, subset)
		}
	}

	for _, total := range []int64{200, 199, 250, 301, 7} {
		for _, subset := range subsets {
			allocs, err := Allocate(total, subset)
			if err != nil {
				t.Fatalf("allocate %v: %v", subset, err)
			}
			var sum int64
			for _, a := range allocs {
				sum += a.Price
			}
			if sum != total {
				t.Fatalf("sum %d != total %d for %v", sum, total, subset)
			}
		}
	}
}

func TestAllocateRejectsUnknownAndDuplicate(t *testing.T) {
	if _, err := Allocate(200, []Component{"tail", ComponentMeat}); !errors.Is(err, domain.ErrInvalidComboSelection) {
		t.Fatalf("expected ErrInvalidComboSelection, got %v", err)
	}
	if _, err := Allocate(200, []Component{ComponentMeat, ComponentMeat}); !errors.Is(err, domain.ErrInvalidComboSelection) {
		t.Fatalf("expected ErrInvalidComboSelection, got %v", err)
	}
}

func TestComboSelectionCapsAtFourAndRequiresTwo(t *testing.T) {
	var sel ComboSelection
	if err := sel.Add(ComponentMeat); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := sel.Confirm(); !errors.Is(err, domain.ErrInsufficientComboSelection) {
		t.Fatalf("expected ErrInsufficientComboSelection, got %v", err)
	}

	for _, c := range Components() {
		if err := sel.Add(c); err != nil {
			t.Fatalf("add %s: %v", c, err)
		}
	}
	if sel.Len() != MaxComboComponents {
		t.Fatalf("expected selection capped at %d, got %d", MaxComboComponents, sel.Len())
	}
	if items := sel.Items(); items[len(items)-1] == ComponentRoe {
		t.Fatalf("fifth component should have been ignored: %v", items)
	}

	if err := sel.Toggle(ComponentSkin); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if sel.Len() != 3 {
		t.Fatalf("expected toggle to remove skin, got %v", sel.Items())
	}

	items, err := sel.Confirm()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %v", items)
	}
}

func TestParseComponent(t *testing.T) {
	c, err := ParseComponent(" Roe ")
	if err != nil || c != ComponentRoe {
		t.Fatalf("expected roe, got %q err=%v", c, err)
	}
	if id, ok := ComponentProductID(c); !ok || id != "ss_roe" {
		t.Fatalf("expected ss_roe, got %q", id)
	}
	if _, err := ParseComponent("bellymeat"); err == nil {
		t.Fatalf("expected unknown component to be rejected")
	}
}
