// Package models defines the data structures shared across the sync tool.
package models

import "time"

// Card represents one inventory entry scraped from a collection page.
// CardURL is the identity used for de-duplication. TCDBPrice and
// TCDBPriceSource stay at their zero values unless the optional pricing
// pass fills them in.
type Card struct {
	CardURL         string   `csv:"card_url" json:"card_url"`
	SetName         string   `csv:"set_name" json:"set_name"`
	CardNumber      string   `csv:"card_number" json:"card_number"`
	CardName        string   `csv:"card_name" json:"card_name"`
	Player          string   `csv:"player" json:"player"`
	Team            string   `csv:"team" json:"team"`
	Quantity        int      `csv:"quantity" json:"quantity"`
	TCDBPrice       *float64 `csv:"tcdb_price" json:"tcdb_price"`
	TCDBPriceSource string   `csv:"tcdb_price_source" json:"tcdb_price_source"`
}

// Source identifies where a snapshot was scraped from.
type Source struct {
	InventoryURL string `json:"inventory_url"`
	Site         string `json:"site"`
}

// Totals aggregates counts over a snapshot's card list.
type Totals struct {
	Cards       int `json:"cards"`
	Units       int `json:"units"`
	PricedCards int `json:"priced_cards"`
}

// Snapshot is the complete output document for one traversal. Cards are
// ordered by discovery and unique by CardURL.
type Snapshot struct {
	Source      Source    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
	Totals      Totals    `json:"totals"`
	Cards       []*Card   `json:"cards"`
}

// BuildSnapshot assembles a snapshot from an already de-duplicated card
// list, computing totals.
func BuildSnapshot(inventoryURL string, cards []*Card) *Snapshot {
	totals := Totals{Cards: len(cards)}
	for _, c := range cards {
		totals.Units += c.Quantity
		if c.TCDBPrice != nil {
			totals.PricedCards++
		}
	}
	if cards == nil {
		cards = []*Card{}
	}
	return &Snapshot{
		Source:      Source{InventoryURL: inventoryURL, Site: "tcdb.com"},
		GeneratedAt: time.Now().UTC(),
		Totals:      totals,
		Cards:       cards,
	}
}

// WalkResult holds the overall outcome of a collection walk.
type WalkResult struct {
	Cards        []*Card
	StartTime    time.Time
	EndTime      time.Time
	PageCount    int
	RequestCount int
	RetryCount   int
	SkippedDupes int
}
