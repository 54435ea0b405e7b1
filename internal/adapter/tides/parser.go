// Package tides reads high and low water times from the tide table page.
package tides

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/surf-forecast-etl/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

var (
	clockPattern  = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
	heightPattern = regexp.MustCompile(`^(-?\d+(?:[.,]\d+)?)\s*m$`)
)

// Parse extracts tide events from a tide table page. The page holds one
// bordered table per day, the first one for today; each row names the kind
// (pleamar or bajamar), its local time and optionally its height in meters.
func Parse(payload []byte, today time.Time) ([]domain.TideEvent, error) {
	r, err := charset.NewReader(bytes.NewReader(payload), "text/html")
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse tide page: %w", err)
	}

	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	var events []domain.TideEvent
	for day, table := range dayTables(doc) {
		date := midnight.AddDate(0, 0, day)
		for _, row := range findAll(table, "tr") {
			ev, ok, err := parseRow(row, date)
			if err != nil {
				return nil, fmt.Errorf("day %d: %w", day, err)
			}
			if ok {
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

// parseRow reads one table row. Rows without a tide kind, such as headers,
// are skipped.
func parseRow(row *html.Node, date time.Time) (domain.TideEvent, bool, error) {
	var (
		ev      domain.TideEvent
		hasKind bool
		hasTime bool
	)
	for _, cell := range findAll(row, "td") {
		text := strings.ToLower(strings.TrimSpace(textContent(cell)))
		switch {
		case text == "pleamar":
			ev.Kind, hasKind = domain.TideHigh, true
		case text == "bajamar":
			ev.Kind, hasKind = domain.TideLow, true
		case clockPattern.MatchString(text) && !hasTime:
			m := clockPattern.FindStringSubmatch(text)
			h, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			if h > 23 || mm > 59 {
				return ev, false, fmt.Errorf("invalid time %q", text)
			}
			ev.Datetime = time.Date(date.Year(), date.Month(), date.Day(), h, mm, 0, 0, date.Location())
			hasTime = true
		case heightPattern.MatchString(text):
			m := heightPattern.FindStringSubmatch(text)
			v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
			if err == nil {
				ev.Height = &v
			}
		}
	}
	if !hasKind {
		return ev, false, nil
	}
	if !hasTime {
		return ev, false, fmt.Errorf("%s row has no time", ev.Kind)
	}
	return ev, true, nil
}

// dayTables returns the bordered tables in document order.
func dayTables(doc *html.Node) []*html.Node {
	var out []*html.Node
	for _, t := range findAll(doc, "table") {
		if hasClass(t, "table-bordered") {
			out = append(out, t)
		}
	}
	return out
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
				// Nested tables belong to the outer cell.
				if tag == "table" {
					continue
				}
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
