package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	intRe       = regexp.MustCompile(`\d+`)
	weightRe    = regexp.MustCompile(`(\d+)\(([+-]?\d+)\)`)
	courseLenRe = regexp.MustCompile(`(\d{3,4})m`)
	jpDateRe    = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`)
)

// atoiPtr parses an integer cell; anything non-numeric resolves to nil.
// Result tables spell non-finishers with glyphs like 中止 or 取消 in the
// rank column, which is exactly the nil case.
func atoiPtr(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &v
}

func atofPtr(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// firstInt returns the first run of digits in s.
func firstInt(s string) (int, bool) {
	m := intRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseBodyWeight splits a 486(+2) style cell into weight and change.
// Unweighed runners (計不) yield nil for both.
func parseBodyWeight(s string) (*int, *int) {
	m := weightRe.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	w, err1 := strconv.Atoi(m[1])
	d, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return nil, nil
	}
	return &w, &d
}

// parseCourseLen finds a 3-4 digit meter figure ("芝右1600m", "ダ1200").
// The meter suffix is tried first so clock figures like 15:35 never win.
func parseCourseLen(s string) (int, bool) {
	if m := courseLenRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.Atoi(m[1])
		if err == nil {
			return v, true
		}
	}
	return firstInt(s)
}

// parseDate accepts the two date spellings the source uses: 2023/05/14 in
// history tables and 2023年5月14日 in race info blocks.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006/01/02", s, time.UTC); err == nil {
		return t, true
	}
	if m := jpDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// parsePrize parses a prize-money cell. Figures carry thousands separators
// ("1,100.0"); an empty cell means no prize and defaults to 0.
func parsePrize(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// parseRankDiff parses the margin-behind-winner cell, clamped to >= 0
// (the winner's own row carries a negative or zero margin).
func parseRankDiff(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
