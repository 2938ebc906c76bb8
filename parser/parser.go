// Package parser extracts inventory rows, pagination links, and prices
// from tcdb.com pages. Everything here is a pure function over parsed
// HTML so it can be tested without a network.
package parser

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rsmith1217/tcdb-sync/models"
)

// CardLinkSelector matches anchors pointing at a card detail page. The
// presence of such a link is what distinguishes an inventory row from
// header, footer, and layout rows.
const CardLinkSelector = `a[href*="/Card.cfm"], a[href*="/Cards/"], a[href*="/cards/"]`

var (
	quantityRe = regexp.MustCompile(`\b(\d{1,3})\b`)
	moneyRe    = regexp.MustCompile(`\$\s*([0-9]+(?:\.[0-9]{1,2})?)`)
)

// Page is the transient result of parsing one listing page.
type Page struct {
	Cards   []*models.Card
	NextURL string
}

// ParsePage parses one listing page: it selects the inventory table,
// extracts card rows, and resolves the next-page link. A page without any
// table yields zero cards but still resolves pagination.
func ParsePage(pageURL string, body []byte) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{NextURL: NextURL(doc, base)}
	if table := SelectTable(doc); table != nil {
		page.Cards = ParseRows(base, table)
	}
	return page, nil
}

// Score rates how likely a table is to be the inventory table, from its
// flattened text and whether it contains a card detail link. The link
// bonus dominates the text tokens: it is the strongest signal of an
// actual card row versus an incidental layout table.
func Score(text string, hasCardLink bool) int {
	text = strings.ToLower(text)

	score := 0
	if strings.Contains(text, "card") {
		score += 3
	}
	if strings.Contains(text, "player") {
		score += 2
	}
	if strings.Contains(text, "qty") || strings.Contains(text, "quantity") {
		score += 2
	}
	if hasCardLink {
		score += 5
	}
	return score
}

// SelectTable picks the table most likely to hold inventory rows, or nil
// when the document has no tables. tcdb.com gives the table no stable
// id or class, so content scoring is the selection strategy. Ties keep
// the first table in document order, and a best score of zero is still a
// selection.
func SelectTable(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestScore := -1

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		score := Score(table.Text(), table.Find(CardLinkSelector).Length() > 0)
		if score > bestScore {
			best = table
			bestScore = score
		}
	})

	return best
}

// ParseRows converts the rows of a selected table into card records.
// Rows with fewer than two cells or without a card detail link are
// skipped; a row whose href cannot be resolved against base is dropped.
func ParseRows(base *url.URL, table *goquery.Selection) []*models.Card {
	var cards []*models.Card

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		link := row.Find(CardLinkSelector).First()
		if link.Length() == 0 {
			return
		}
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" {
			return
		}
		cardURL, err := base.Parse(href)
		if err != nil {
			// Malformed href: drop the row, keep the walk going.
			return
		}

		cols := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			cols = append(cols, normalizeText(cell.Text()))
		})

		name := col(cols, 2)
		if name == "" {
			name = normalizeText(link.Text())
		}

		cards = append(cards, &models.Card{
			CardURL:    cardURL.String(),
			SetName:    col(cols, 0),
			CardNumber: col(cols, 1),
			CardName:   name,
			Player:     col(cols, 3),
			Team:       col(cols, 4),
			Quantity:   extractQuantity(cols),
		})
	})

	return cards
}

// NextURL finds the forward pagination link: the first anchor in document
// order whose trimmed lowercased text is ">" or ">>" or starts with
// "next". Returns "" when the page has no such anchor or its href cannot
// be resolved.
func NextURL(doc *goquery.Document, base *url.URL) string {
	next := ""
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(normalizeText(a.Text()))
		if text != ">" && text != ">>" && !strings.HasPrefix(text, "next") {
			return true
		}

		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href != "" {
			if resolved, err := base.Parse(href); err == nil {
				next = resolved.String()
			}
		}
		return false
	})
	return next
}

// ParsePrice scans a card detail page for dollar amounts and returns the
// lowest one, rounded to cents. The second return is false when the page
// shows no price.
func ParsePrice(html string) (float64, bool) {
	lowest := 0.0
	found := false
	for _, m := range moneyRe.FindAllStringSubmatch(html, -1) {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if !found || value < lowest {
			lowest = value
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return math.Round(lowest*100) / 100, true
}

// extractQuantity scans cell texts from the last cell backward and takes
// the first standalone 1-3 digit number. Scanning backward keeps year
// fragments in set names from being misread as a quantity. Defaults to 1.
func extractQuantity(cols []string) int {
	for i := len(cols) - 1; i >= 0; i-- {
		if m := quantityRe.FindStringSubmatch(cols[i]); m != nil {
			qty, err := strconv.Atoi(m[1])
			if err == nil && qty > 0 {
				return qty
			}
		}
	}
	return 1
}

func col(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
