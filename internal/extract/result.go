package extract

import (
	"fmt"
	"sort"

	"golang.org/x/net/html/atom"

	"keiba-feature-lab/internal/codec"
	"keiba-feature-lab/internal/domain"
)

// RaceResults extracts the finishing table of a completed race page.
//
// Each table row is parsed self-contained: the horse, jockey and trainer
// references are taken from the links inside that row, so they can never
// shift against the cells. A data row missing exactly one of each reference
// rejects the whole document with ErrRefMismatch.
//
// Rows come back sorted by horse number. Result tables list runners by
// finishing order, and a positional consumer could leak the outcome through
// row order alone.
func (e *Extractor) RaceResults(doc Document) ([]*domain.RaceResultRow, error) {
	root, err := parseDocument(doc.Body)
	if err != nil {
		return nil, fail(doc, err)
	}

	tbl := findByClass(root, atom.Table, "race_table_01")
	if tbl == nil {
		return nil, fail(doc, ErrTableNotFound)
	}
	t := parseTable(tbl)

	rows := make([]*domain.RaceResultRow, 0, len(t.rows))
	for _, r := range t.rows {
		horse, ok := singleRef(r, "horse")
		if !ok {
			return nil, fail(doc, ErrRefMismatch)
		}
		jockey, ok := singleRef(r, "jockey")
		if !ok {
			return nil, fail(doc, ErrRefMismatch)
		}
		trainer, ok := singleRef(r, "trainer")
		if !ok {
			return nil, fail(doc, ErrRefMismatch)
		}

		umaban, ok := firstInt(t.cell(r, "馬番"))
		if !ok {
			return nil, fail(doc, fmt.Errorf("unparsable horse number %q", t.cell(r, "馬番")))
		}
		wakuban, _ := firstInt(t.cell(r, "枠番"))

		sex, age := e.splitSexAge(t.cell(r, "性齢"))
		weight, weightDiff := parseBodyWeight(t.cell(r, "馬体重"))

		var impost float64
		if v := atofPtr(t.cell(r, "斤量")); v != nil {
			impost = *v
		}

		rows = append(rows, &domain.RaceResultRow{
			RaceID:     doc.ID,
			HorseID:    horse,
			JockeyID:   jockey,
			TrainerID:  trainer,
			Rank:       atoiPtr(t.cell(r, "着順")),
			Wakuban:    wakuban,
			Umaban:     umaban,
			Sex:        sex,
			Age:        age,
			Weight:     weight,
			WeightDiff: weightDiff,
			TansyoOdds: atofPtr(t.cell(r, "単勝")),
			Popularity: atoiPtr(t.cell(r, "人気")),
			Impost:     impost,
			Agari:      atofPtr(t.cell(r, "上り")),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Umaban < rows[j].Umaban })
	return rows, nil
}

// singleRef returns the row's sole reference id of the given kind.
func singleRef(r tableRow, kind string) (string, bool) {
	ids := r.refs[kind]
	if len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

// splitSexAge splits a 牡3 style cell into sex code and age.
func (e *Extractor) splitSexAge(s string) (*int, int) {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil, 0
	}
	sex := e.codec.Encode(codec.CategorySex, string(runes[0]))
	age, _ := firstInt(string(runes[1:]))
	return sex, age
}
