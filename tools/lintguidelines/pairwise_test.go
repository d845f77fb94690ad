package main

import (
	"path/filepath"
	"testing"
)

func TestPairwiseRuleCombinations(t *testing.T) {
	rules := []string{
		"layering",
		"concept-coupling",
		"contracts",
		"storage-isolation",
	}

	for idx, combo := range generateAllCombos(len(rules)) {
		root := t.TempDir()
		setupBaseRepo(t, root)
		applyViolations(t, root, combo)

		violations, err := lint(root)
		if err != nil {
			t.Fatalf("combo %d lint failed: %v", idx, err)
		}
		for i, rule := range rules {
			if combo[i] {
				assertHasRule(t, violations, rule)
			} else {
				assertNotHasRule(t, violations, rule)
			}
		}
	}
}

func setupBaseRepo(t *testing.T, root string) {
	t.Helper()
	writeFile(t, filepath.Join(root, "go.mod"), "module shop\n")
	writeFile(t, filepath.Join(root, "internal/domain/order/model.go"), `package order

type Order struct {
	ID string
}
`)
	writeFile(t, filepath.Join(root, "internal/domain/customer/model.go"), `package customer

type Customer struct {
	ID string
}
`)
	writeFile(t, filepath.Join(root, "internal/application/orchestrators/create_order.go"), `package orchestrators

// ExecuteCreateOrder stores an order.
// PRE: input is valid
// POST: order saved
func ExecuteCreateOrder() error { return nil }
`)
	writeFile(t, filepath.Join(root, "internal/adapters/storage/order/store.go"), `package order

type Store interface{}
`)
}

func applyViolations(t *testing.T, root string, combo []bool) {
	t.Helper()
	if combo[0] {
		writeFile(t, filepath.Join(root, "internal/domain/order/http.go"), `package order

import "net/http"

var _ = http.StatusOK
`)
	}
	if combo[1] {
		writeFile(t, filepath.Join(root, "internal/domain/order/customer.go"), `package order

import "shop/internal/domain/customer"

var _ customer.Customer
`)
	}
	if combo[2] {
		writeFile(t, filepath.Join(root, "internal/application/projections/order_list.go"), `package projections

// ListOrders pages orders.
// POST: newest first
func ListOrders() error { return nil }
`)
	}
	if combo[3] {
		writeFile(t, filepath.Join(root, "internal/adapters/storage/billing/store.go"), `package billing

type Store interface{}
`)
	}
}

func generateAllCombos(params int) [][]bool {
	if params <= 0 {
		return nil
	}
	total := 1 << params
	rows := make([][]bool, 0, total)
	for mask := 0; mask < total; mask++ {
		row := make([]bool, params)
		for i := 0; i < params; i++ {
			row[i] = mask&(1<<i) != 0
		}
		rows = append(rows, row)
	}
	return rows
}
