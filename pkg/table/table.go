// Package table extracts rows from stat tables using the column metadata
// embedded in the markup (data-stat keys) instead of fixed schemas.
package table

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var ErrTableNotFound = errors.New("table not found")

// Column describes one header cell.
type Column struct {
	Label       string `json:"stat"`
	Abbr        string `json:"stat_abbr"`
	Key         string `json:"data_stat"`
	Description string `json:"description"`
}

// Record maps output keys to raw cell values for one row.
type Record map[string]string

// Table is the result of extracting one table.
type Table struct {
	ID      string
	Columns []Column
	// Keys lists the output keys in column order, including the extra keys
	// produced by entity columns.
	Keys []string
	Rows []Record
}

// Parse reads an HTML document and unwraps tables hidden in comments.
func Parse(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	Uncomment(root)
	return goquery.NewDocumentFromNode(root), nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) (*goquery.Document, error) {
	return Parse(strings.NewReader(s))
}

// Find returns the table element with the given id.
func Find(doc *goquery.Document, tableID string) (*goquery.Selection, error) {
	sel := doc.Find(`table[id="` + tableID + `"]`)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableID)
	}
	return sel.First(), nil
}

// Extract reads the table with the given id.
func Extract(doc *goquery.Document, tableID string) (*Table, error) {
	sel, err := Find(doc, tableID)
	if err != nil {
		return nil, err
	}
	return FromSelection(tableID, sel), nil
}

// ExtractAll reads every table with an id and at least one described column,
// in document order.
func ExtractAll(doc *goquery.Document) []*Table {
	var out []*Table
	seen := make(map[string]bool)
	doc.Find("table[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		if t := FromSelection(id, s); len(t.Columns) > 0 {
			out = append(out, t)
		}
	})
	return out
}

// FromSelection extracts an already located table element.
func FromSelection(id string, sel *goquery.Selection) *Table {
	cols := Columns(sel)
	l := newLayout(id, cols)
	t := &Table{ID: id, Columns: cols, Keys: l.keys}
	sel.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("td").Length() == 0 {
			return
		}
		if rec, ok := l.row(tr); ok {
			t.Rows = append(t.Rows, rec)
		}
	})
	return t
}

// Columns reads the header cells that carry both a label and a machine key.
func Columns(sel *goquery.Selection) []Column {
	var cols []Column
	seen := make(map[string]bool)
	sel.Find("th[aria-label]").Each(func(_ int, th *goquery.Selection) {
		key := strings.TrimSpace(th.AttrOr("data-stat", ""))
		if key == "" || strings.HasPrefix(key, "header_") || seen[key] {
			return
		}
		seen[key] = true
		cols = append(cols, Column{
			Label:       strings.TrimSpace(th.AttrOr("aria-label", "")),
			Abbr:        CellText(th),
			Key:         key,
			Description: strings.TrimSpace(th.AttrOr("data-tip", "")),
		})
	})
	return cols
}

// CellText returns the cell text with runs of whitespace collapsed.
func CellText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

var resultsIDRe = regexp.MustCompile(`^results[\d-]*_(\w+)$`)

// Category maps a table id to its stat category. League table ids embed the
// season and competition ("results2023-202491_overall") which are dropped.
func Category(tableID string) string {
	if m := resultsIDRe.FindStringSubmatch(tableID); m != nil {
		return "results_" + m[1]
	}
	return tableID
}
