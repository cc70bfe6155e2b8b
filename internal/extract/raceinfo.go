package extract

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"keiba-feature-lab/internal/codec"
	"keiba-feature-lab/internal/domain"
)

// RaceInfo extracts the race context block of a race page.
//
// Completed race pages and race-card pages lay the block out differently,
// but both reduce to two text lines: conditions (surface, direction, length,
// weather, ground) and circumstances (date, venue, class). One parser
// handles both, keyed by document kind, so the historical and live paths
// cannot drift apart.
func (e *Extractor) RaceInfo(doc Document) (*domain.RaceInfoRow, error) {
	root, err := parseDocument(doc.Body)
	if err != nil {
		return nil, fail(doc, err)
	}

	var info1, info2, title string
	switch doc.Kind {
	case KindRaceCard:
		d1 := findByClass(root, atom.Div, "RaceData01")
		d2 := findByClass(root, atom.Div, "RaceData02")
		if d1 == nil || d2 == nil {
			return nil, fail(doc, ErrTableNotFound)
		}
		info1, info2 = collectText(d1), collectText(d2)
		if h := findByClass(root, atom.Div, "RaceName"); h != nil {
			title = collectText(h)
		}
	default:
		intro := findByClass(root, atom.Div, "data_intro")
		if intro == nil {
			return nil, fail(doc, ErrTableNotFound)
		}
		info1, info2 = introParagraphs(intro)
		if info1 == "" {
			return nil, fail(doc, ErrTableNotFound)
		}
		if h := firstOf(intro, atom.H1); h != nil {
			title = collectText(h)
		}
	}

	// Token scanning ignores spacing.
	cond := strings.ReplaceAll(info1, " ", "")
	circ := strings.ReplaceAll(info2, " ", "")

	courseLen, _ := parseCourseLen(cond)

	date, ok := raceDate(circ, title, root)
	if !ok {
		return nil, fail(doc, fmt.Errorf("race date not found"))
	}

	raceClass := e.codec.Encode(codec.CategoryRaceClass, circ)
	if raceClass == nil {
		raceClass = e.codec.Encode(codec.CategoryRaceClass, title)
	}

	return &domain.RaceInfoRow{
		RaceID:      doc.ID,
		Date:        date,
		RaceType:    e.codec.Encode(codec.CategoryRaceType, cond),
		Around:      e.codec.Encode(codec.CategoryAround, cond),
		CourseLen:   courseLen,
		Weather:     e.codec.Encode(codec.CategoryWeather, cond),
		GroundState: e.codec.Encode(codec.CategoryGroundState, cond),
		RaceClass:   raceClass,
		Place:       e.codec.Encode(codec.CategoryPlace, circ),
	}, nil
}

// introParagraphs returns the first two <p> texts under the intro block.
func introParagraphs(intro *html.Node) (string, string) {
	var ps []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			ps = append(ps, collectText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(intro)
	var p1, p2 string
	if len(ps) > 0 {
		p1 = ps[0]
	}
	if len(ps) > 1 {
		p2 = ps[1]
	}
	return p1, p2
}

// raceDate finds the race date, preferring the circumstances line, then the
// page title, then any date spelled anywhere in the document. Card pages
// sometimes only carry the date in the <title>.
func raceDate(circ, title string, root *html.Node) (time.Time, bool) {
	if d, ok := parseDate(circ); ok {
		return d, true
	}
	if d, ok := parseDate(title); ok {
		return d, true
	}
	if d, ok := parseDate(collectText(root)); ok {
		return d, true
	}
	return time.Time{}, false
}

// firstOf returns the first descendant element of the given atom.
func firstOf(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstOf(c, a); found != nil {
			return found
		}
	}
	return nil
}
