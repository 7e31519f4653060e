package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Bench Press":        "bench press",
		"bench-press":        "bench press",
		"BENCH  PRESS!!":     "bench press",
		"  bench   press  ": "bench press",
		"90/90 Hip Switch":   "90 90 hip switch",
		"!!!":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKey(in), "input %q", in)
	}
}

func TestNormalizeKeyCollapsesVariantSpellings(t *testing.T) {
	variants := []string{"Bench Press", "bench press", "Bench-Press", "bench_press."}
	first := NormalizeKey(variants[0])
	for _, v := range variants[1:] {
		assert.Equal(t, first, NormalizeKey(v), "variant %q", v)
	}
}

func TestTokenizeExpandsAbbreviations(t *testing.T) {
	assert.Equal(t,
		[]string{"barbell", "bench", "press"},
		Tokenize("BB Bench Press", nil))
	assert.Equal(t,
		[]string{"overhead", "press"},
		Tokenize("OHP", nil))
	assert.Equal(t,
		[]string{"single", "arm", "dumbbell", "row"},
		Tokenize("sa db row", nil))
}

func TestTokenizeSplitsHyphenAndSlash(t *testing.T) {
	assert.Equal(t,
		[]string{"pull", "up"},
		Tokenize("pull-up", nil))
	assert.Equal(t,
		[]string{"90", "90", "hip", "switch"},
		Tokenize("90/90 hip switch", nil))
}

func TestTokenizeExtraDictionaryWins(t *testing.T) {
	extra := map[string]string{"bb": "banded barbell"}
	assert.Equal(t,
		[]string{"banded", "barbell", "curl"},
		Tokenize("bb curl", extra))
}
