package acquire

import (
	"io"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var yearPattern = regexp.MustCompile(`20\d{2}`)

// Spanish month names as they appear in portal file names. Both spellings of
// September are in use.
var monthNames = []struct {
	name  string
	month int
}{
	{"enero", 1}, {"febrero", 2}, {"marzo", 3}, {"abril", 4},
	{"mayo", 5}, {"junio", 6}, {"julio", 7}, {"agosto", 8},
	{"setiembre", 9}, {"septiembre", 9}, {"octubre", 10},
	{"noviembre", 11}, {"diciembre", 12},
}

// Link is an anchor found on the dataset page.
type Link struct {
	Href string
	Text string
}

// Score orders candidate links: newer year first, then newer month, then the
// longer (more specific) href.
type Score struct {
	Year    int
	Month   int
	HrefLen int
}

// Less reports whether s ranks below o.
func (s Score) Less(o Score) bool {
	if s.Year != o.Year {
		return s.Year < o.Year
	}
	if s.Month != o.Month {
		return s.Month < o.Month
	}
	return s.HrefLen < o.HrefLen
}

// ScoreLink extracts the first year and month name mentioned in the href or
// the anchor text. Missing parts score zero.
func ScoreLink(l Link) Score {
	candidate := l.Href + " " + l.Text
	if u, err := url.PathUnescape(candidate); err == nil {
		candidate = u
	}
	var s Score
	if m := yearPattern.FindString(candidate); m != "" {
		s.Year, _ = strconv.Atoi(m)
	}
	lower := strings.ToLower(candidate)
	for _, mn := range monthNames {
		if strings.Contains(lower, mn.name) {
			s.Month = mn.month
			break
		}
	}
	s.HrefLen = len(l.Href)
	return s
}

// CSVLinks returns every anchor whose href mentions ".csv".
func CSVLinks(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" && strings.Contains(strings.ToLower(a.Val), ".csv") {
					links = append(links, Link{Href: a.Val, Text: strings.Join(strings.Fields(textOf(n)), " ")})
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
		b.WriteByte(' ')
	}
	return b.String()
}

// BestLink picks the highest scoring link; ties keep document order.
func BestLink(links []Link) (Link, bool) {
	if len(links) == 0 {
		return Link{}, false
	}
	sorted := append([]Link(nil), links...)
	sort.SliceStable(sorted, func(i, j int) bool { return ScoreLink(sorted[j]).Less(ScoreLink(sorted[i])) })
	return sorted[0], true
}
