package models

import "testing"

func TestBuildSnapshotTotals(t *testing.T) {
	price := 1.25
	cards := []*Card{
		{CardURL: "http://example.test/cards/1", Quantity: 3, TCDBPrice: &price, TCDBPriceSource: "tcdb-page"},
		{CardURL: "http://example.test/cards/2", Quantity: 1},
		{CardURL: "http://example.test/cards/3", Quantity: 2, TCDBPriceSource: "not-found"},
	}

	snap := BuildSnapshot("http://example.test/collection", cards)

	if snap.Source.InventoryURL != "http://example.test/collection" {
		t.Fatalf("inventory url=%q", snap.Source.InventoryURL)
	}
	if snap.Source.Site != "tcdb.com" {
		t.Fatalf("site=%q", snap.Source.Site)
	}
	if snap.Totals.Cards != 3 {
		t.Fatalf("cards=%d, want 3", snap.Totals.Cards)
	}
	if snap.Totals.Units != 6 {
		t.Fatalf("units=%d, want 6", snap.Totals.Units)
	}
	if snap.Totals.PricedCards != 1 {
		t.Fatalf("priced=%d, want 1", snap.Totals.PricedCards)
	}
	if snap.GeneratedAt.IsZero() {
		t.Fatalf("generated_at should be set")
	}
	if snap.GeneratedAt.Location().String() != "UTC" {
		t.Fatalf("generated_at should be UTC, got %v", snap.GeneratedAt.Location())
	}
}

func TestBuildSnapshotEmpty(t *testing.T) {
	snap := BuildSnapshot("http://example.test/collection", nil)

	if snap.Totals.Cards != 0 || snap.Totals.Units != 0 || snap.Totals.PricedCards != 0 {
		t.Fatalf("totals=%+v, want zeros", snap.Totals)
	}
	if snap.Cards == nil {
		t.Fatalf("cards should serialize as an empty list, not null")
	}
}
