package codec

import "testing"

func codeOf(t *testing.T, c *Codec, cat Category, token string) int {
	t.Helper()
	got := c.Encode(cat, token)
	if got == nil {
		t.Fatalf("Encode(%s, %q) = nil, want a code", cat, token)
	}
	return *got
}

func TestEncodeSex(t *testing.T) {
	c := New()
	cases := map[string]int{"牡": 0, "牝": 1, "セ": 2}
	for token, want := range cases {
		if got := codeOf(t, c, CategorySex, token); got != want {
			t.Errorf("sex %q = %d, want %d", token, got, want)
		}
	}
	if got := c.Encode(CategorySex, "?"); got != nil {
		t.Errorf("sex %q = %d, want nil", "?", *got)
	}
}

func TestEncodeWeatherPriority(t *testing.T) {
	c := New()
	// 小雨 must not resolve through the plain 雨 rule.
	if got := codeOf(t, c, CategoryWeather, "小雨"); got != 2 {
		t.Errorf("小雨 = %d, want 2", got)
	}
	if got := codeOf(t, c, CategoryWeather, "小雪"); got != 5 {
		t.Errorf("小雪 = %d, want 5", got)
	}
	if got := codeOf(t, c, CategoryWeather, "雨"); got != 3 {
		t.Errorf("雨 = %d, want 3", got)
	}
}

func TestEncodeWeatherUnknownReserved(t *testing.T) {
	c := New()
	got := c.Encode(CategoryWeather, "霧")
	if got == nil || *got != WeatherUnknown {
		t.Fatalf("unmatched weather = %v, want reserved code %d", got, WeatherUnknown)
	}
}

func TestEncodeGroundStateSynonyms(t *testing.T) {
	c := New()
	// Abbreviated glyphs collapse onto the full spelling's code.
	cases := map[string]int{"良": 0, "重": 1, "稍重": 2, "稍": 2, "不良": 3, "不": 3}
	for token, want := range cases {
		if got := codeOf(t, c, CategoryGroundState, token); got != want {
			t.Errorf("ground %q = %d, want %d", token, got, want)
		}
	}
}

func TestEncodeRaceTypeObstaclePriority(t *testing.T) {
	c := New()
	// Jump-race banners carry the turf glyph too; obstacle must win.
	if got := codeOf(t, c, CategoryRaceType, "障芝"); got != 2 {
		t.Errorf("障芝 = %d, want 2", got)
	}
	if got := codeOf(t, c, CategoryRaceType, "芝右1600m"); got != 1 {
		t.Errorf("芝右1600m = %d, want 1", got)
	}
	if got := codeOf(t, c, CategoryRaceType, "ダ1200"); got != 0 {
		t.Errorf("ダ1200 = %d, want 0", got)
	}
}

func TestEncodeRaceClassLegacyCollapse(t *testing.T) {
	c := New()
	// Purse-based legacy labels map onto the modern win-class ordinals.
	if got := codeOf(t, c, CategoryRaceClass, "500万下"); got != 2 {
		t.Errorf("500万下 = %d, want 2", got)
	}
	if got := codeOf(t, c, CategoryRaceClass, "3歳1勝クラス"); got != 2 {
		t.Errorf("3歳1勝クラス = %d, want 2", got)
	}
	if got := codeOf(t, c, CategoryRaceClass, "菊花賞(G1)"); got != 8 {
		t.Errorf("菊花賞(G1) = %d, want 8", got)
	}
	if got := c.Encode(CategoryRaceClass, "名無しレース"); got != nil {
		t.Errorf("unmatched class = %d, want nil", *got)
	}
}

func TestEncodePlace(t *testing.T) {
	c := New()
	if got := codeOf(t, c, CategoryPlace, "1回東京8日目"); got != 0 {
		t.Errorf("東京 = %d, want 0", got)
	}
	// 函館 has carried code 10 since v1 of the tables; 6 stays unassigned.
	if got := codeOf(t, c, CategoryPlace, "函館"); got != 10 {
		t.Errorf("函館 = %d, want 10", got)
	}
	if got := codeOf(t, c, CategoryPlace, "帯広"); got != 24 {
		t.Errorf("帯広 = %d, want 24", got)
	}
}
