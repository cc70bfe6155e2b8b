package assemble

import (
	"strconv"
	"strings"

	"keiba-feature-lab/internal/domain"
)

// RenderTSV renders feature rows as a tab-separated table with a header line.
// Null values render as empty cells, dates as yyyy-mm-dd. The column order is
// exactly Columns(mode, windows).
func RenderTSV(mode Mode, windows []domain.Window, rows []*domain.FeatureRow) string {
	var sb strings.Builder

	sb.WriteString(strings.Join(Columns(mode, windows), "\t"))
	sb.WriteByte('\n')

	for _, r := range rows {
		cells := []string{
			r.RaceID, r.HorseID, r.Date.Format("2006-01-02"),
			r.JockeyID, r.TrainerID,
			cellInt(r.Wakuban), cellInt(r.Umaban), cellInt(r.Sex), cellInt(r.Age),
			cellInt(r.Weight), cellInt(r.WeightDiff), cellFloat(r.TansyoOdds),
			cellInt(r.Popularity), cellFloat(r.Impost), cellFloat(r.Agari),
			cellInt(r.RaceType), cellInt(r.Around), strconv.Itoa(r.CourseLen),
			cellInt(r.Weather), cellInt(r.GroundState), cellInt(r.RaceClass), cellInt(r.Place),
		}
		for _, w := range windows {
			m := r.Windows[w]
			cells = append(cells, cellFloat(m.RankMean), cellFloat(m.PrizeMean))
		}
		if mode == ModeHistorical {
			cells = append(cells, cellInt(r.Rank), cellInt(r.Target))
		}

		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteByte('\n')
	}

	return sb.String()
}

func cellInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func cellFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
