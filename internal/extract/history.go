package extract

import (
	"fmt"

	"golang.org/x/net/html/atom"

	"keiba-feature-lab/internal/codec"
	"keiba-feature-lab/internal/domain"
)

// HorseHistory extracts the career table of a horse page: one row per past
// start, most recent first. Seq records that document order so same-date
// starts stay deterministically ordered downstream.
//
// Non-finisher rows (nil rank) are returned as-is; whether they survive into
// aggregation is a policy decision made by the history index, not here.
func (e *Extractor) HorseHistory(doc Document) ([]*domain.HorseHistoryRow, error) {
	root, err := parseDocument(doc.Body)
	if err != nil {
		return nil, fail(doc, err)
	}

	tbl := findByClass(root, atom.Table, "db_h_race_results")
	if tbl == nil {
		return nil, fail(doc, ErrTableNotFound)
	}
	t := parseTable(tbl)

	rows := make([]*domain.HorseHistoryRow, 0, len(t.rows))
	for i, r := range t.rows {
		date, ok := parseDate(t.cell(r, "日付"))
		if !ok {
			// A start without a date can never be ordered against a
			// reference date; the whole résumé is suspect.
			return nil, fail(doc, fmt.Errorf("unparsable date %q", t.cell(r, "日付")))
		}

		distance := t.cell(r, "距離")
		var courseLen *int
		if v, ok := firstInt(distance); ok {
			courseLen = &v
		}

		raceName := t.cell(r, "レース名")

		rows = append(rows, &domain.HorseHistoryRow{
			HorseID:     doc.ID,
			Seq:         i,
			Date:        date,
			Rank:        atoiPtr(t.cell(r, "着順")),
			Prize:       parsePrize(t.cell(r, "賞金")),
			RankDiff:    parseRankDiff(t.cell(r, "着差")),
			Weather:     e.codec.Encode(codec.CategoryWeather, t.cell(r, "天気")),
			RaceType:    e.codec.Encode(codec.CategoryRaceType, distance),
			CourseLen:   courseLen,
			GroundState: e.codec.Encode(codec.CategoryGroundState, t.cell(r, "馬場")),
			Agari:       atofPtr(t.cell(r, "上り")),
			RaceClass:   e.codec.Encode(codec.CategoryRaceClass, raceName),
			NHorses:     atoiPtr(t.cell(r, "頭数")),
		})
	}
	return rows, nil
}
