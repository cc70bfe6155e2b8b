package extract

import (
	"fmt"
	"sort"

	"golang.org/x/net/html/atom"

	"keiba-feature-lab/internal/domain"
)

// RaceCard extracts the entry table of an upcoming race. Card rows carry no
// finishing data: Rank and Agari stay nil until the race is run.
//
// The horse reference is mandatory per row, as in result tables. Jockey and
// trainer may be absent on early cards (rider not yet declared) and then
// stay empty rather than rejecting the document.
func (e *Extractor) RaceCard(doc Document) ([]*domain.RaceResultRow, error) {
	root, err := parseDocument(doc.Body)
	if err != nil {
		return nil, fail(doc, err)
	}

	tbl := findByClass(root, atom.Table, "Shutuba_Table", "ShutubaTable", "RaceTable01")
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
		var jockey, trainer string
		if id, ok := singleRef(r, "jockey"); ok {
			jockey = id
		}
		if id, ok := singleRef(r, "trainer"); ok {
			trainer = id
		}

		umaban, ok := firstInt(t.cellLike(r, "馬番"))
		if !ok {
			return nil, fail(doc, fmt.Errorf("unparsable horse number %q", t.cellLike(r, "馬番")))
		}
		wakuban, _ := firstInt(t.cellLike(r, "枠"))

		sex, age := e.splitSexAge(t.cellLike(r, "性齢"))
		weight, weightDiff := parseBodyWeight(t.cellLike(r, "馬体重"))

		var impost float64
		if v := atofPtr(t.cellLike(r, "斤量")); v != nil {
			impost = *v
		}

		rows = append(rows, &domain.RaceResultRow{
			RaceID:     doc.ID,
			HorseID:    horse,
			JockeyID:   jockey,
			TrainerID:  trainer,
			Wakuban:    wakuban,
			Umaban:     umaban,
			Sex:        sex,
			Age:        age,
			Weight:     weight,
			WeightDiff: weightDiff,
			TansyoOdds: atofPtr(t.cellLike(r, "オッズ")),
			Popularity: atoiPtr(t.cellLike(r, "人気")),
			Impost:     impost,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Umaban < rows[j].Umaban })
	return rows, nil
}
