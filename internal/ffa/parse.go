package ffa

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// resultColumns is the fixed column order of the federation result table.
const resultColumns = 10

// parseYears extracts the available seasons from the year-selector control
// embedded in the athlete bilans page.
func parseYears(doc *html.Node) []int {
	var years []int
	for _, sel := range findElements(doc, "select") {
		if !hasClass(sel, "selectMain") {
			continue
		}
		for _, opt := range findElements(sel, "option") {
			val := attr(opt, "value")
			if !strings.Contains(val, "saison=") {
				continue
			}
			raw := val[strings.LastIndex(val, "saison=")+len("saison="):]
			if year, err := strconv.Atoi(raw); err == nil {
				years = append(years, year)
			}
		}
	}
	return years
}

// parseResultsTable extracts the result rows from an athlete results page.
// The result table is the fourth table in the page layout; rows belonging to
// nested detail sub-tables embedded in certain cells are excluded.
func parseResultsTable(doc *html.Node) [][]string {
	tables := findElements(doc, "table")
	if len(tables) <= 3 {
		return nil // unexpected layout
	}

	rows := directRows(tables[3])
	if len(rows) <= 1 {
		return nil // empty table
	}

	var out [][]string
	for _, tr := range rows[1:] { // skip header row
		cells := rowCells(tr)
		if len(cells) < resultColumns {
			continue
		}
		out = append(out, cells[:resultColumns])
	}
	return out
}

// directRows returns the tr nodes whose nearest enclosing table is the given
// table, in document order.
func directRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if c.Data == "table" {
					continue // nested sub-table, excluded
				}
				if c.Data == "tr" {
					rows = append(rows, c)
				}
			}
			walk(c)
		}
	}
	walk(table)
	return rows
}

// rowCells returns the trimmed text of each td in a row, excluding content
// coming from nested tables.
func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			cells = append(cells, strings.TrimSpace(nodeText(c)))
		}
	}
	return cells
}

// nodeText flattens the text content of a node, skipping nested tables.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "table" {
				continue
			}
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// findElements returns all elements with the given tag, in document order.
func findElements(root *html.Node, tag string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				found = append(found, c)
			}
			walk(c)
		}
	}
	walk(root)
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
