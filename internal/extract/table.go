package extract

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tableRow is one <tr> with its cell texts and the reference identifiers
// found in the row's own links, keyed by reference kind. Extracting the
// references together with the cells makes id/row misalignment structurally
// impossible.
type tableRow struct {
	cells []string
	refs  map[string][]string
}

// htmlTable is the primary data table of a document.
type htmlTable struct {
	header []string
	index  map[string]int
	rows   []tableRow
}

// Reference kinds and the fixed-length numeric patterns that recover their
// identifiers from link paths. Horse ids are 10 digits, jockey and trainer
// ids 5; the optional result/recent segment appears on race-card pages.
var refPatterns = map[string]*regexp.Regexp{
	"horse":   regexp.MustCompile(`/horse/(?:ped/)?(\d{10})`),
	"jockey":  regexp.MustCompile(`/jockey/(?:result/recent/)?(\d{5})`),
	"trainer": regexp.MustCompile(`/trainer/(?:result/recent/)?(\d{5})`),
}

// parseDocument parses a raw page, stripping the snapshot markers the source
// site embeds in archived pages.
func parseDocument(body []byte) (*html.Node, error) {
	body = bytes.ReplaceAll(body, []byte("<diary_snap_cut>"), nil)
	body = bytes.ReplaceAll(body, []byte("</diary_snap_cut>"), nil)
	return html.Parse(bytes.NewReader(body))
}

// nodeClass returns the class attribute of an element node.
func nodeClass(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

// findByClass locates the first element of the given atom whose class
// attribute contains any of the markers.
func findByClass(n *html.Node, a atom.Atom, markers ...string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		class := nodeClass(n)
		for _, m := range markers {
			if strings.Contains(class, m) {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, a, markers...); found != nil {
			return found
		}
	}
	return nil
}

// collectText returns the concatenated, whitespace-collapsed text of a node.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// collectRefs scans every link under n and appends matched identifiers
// per reference kind.
func collectRefs(n *html.Node, refs map[string][]string) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		for _, a := range n.Attr {
			if a.Key != "href" {
				continue
			}
			for kind, pat := range refPatterns {
				if m := pat.FindStringSubmatch(a.Val); m != nil {
					refs[kind] = append(refs[kind], m[1])
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectRefs(c, refs)
	}
}

// normalizeHeader strips the spaces and line breaks the source site scatters
// through header labels ("馬 番" and "馬番" are the same column).
func normalizeHeader(s string) string {
	s = strings.ReplaceAll(s, "　", "")
	return strings.Join(strings.Fields(s), "")
}

// parseTable flattens a <table> node into header and self-contained rows.
// The header is the first row containing <th> cells; every later row
// contributes its <td> texts and the reference ids found inside it.
func parseTable(tbl *html.Node) *htmlTable {
	t := &htmlTable{index: make(map[string]int)}

	var trs []*html.Node
	var findRows func(*html.Node)
	findRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			trs = append(trs, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findRows(c)
		}
	}
	findRows(tbl)

	for _, tr := range trs {
		var ths, tds []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Th:
				ths = append(ths, normalizeHeader(collectText(c)))
			case atom.Td:
				tds = append(tds, collectText(c))
			}
		}

		if len(ths) > 0 && t.header == nil {
			t.header = ths
			for i, h := range ths {
				if _, dup := t.index[h]; !dup {
					t.index[h] = i
				}
			}
			continue
		}
		if len(tds) == 0 {
			continue
		}
		refs := make(map[string][]string)
		collectRefs(tr, refs)
		t.rows = append(t.rows, tableRow{cells: tds, refs: refs})
	}
	return t
}

// cell returns the row's value under the named header, or "" when the column
// is absent or the row is short.
func (t *htmlTable) cell(r tableRow, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

// cellLike is cell with substring header matching, for card pages whose
// labels carry decorations like 馬体重(増減).
func (t *htmlTable) cellLike(r tableRow, sub string) string {
	if v := t.cell(r, sub); v != "" {
		return v
	}
	for i, h := range t.header {
		if strings.Contains(h, sub) && i < len(r.cells) {
			return r.cells[i]
		}
	}
	return ""
}
