package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLengthBand(t *testing.T) {
	t.Run("default length 350", func(t *testing.T) {
		b := NewLengthBand(0, 2000)
		assert.Equal(t, 350, b.TargetLen)
		assert.Equal(t, 315, b.MinLen)
		assert.Equal(t, 385, b.MaxLen)
		assert.Equal(t, 12, b.MinLines)
	})

	t.Run("clamped to max target", func(t *testing.T) {
		b := NewLengthBand(5000, 2000)
		assert.Equal(t, 2000, b.TargetLen)
		assert.Equal(t, 1800, b.MinLen)
		assert.Equal(t, 2200, b.MaxLen)
	})

	t.Run("min length floor of 100", func(t *testing.T) {
		b := NewLengthBand(50, 2000)
		assert.Equal(t, 50, b.TargetLen)
		assert.Equal(t, 100, b.MinLen)
		assert.Equal(t, 55, b.MaxLen)
	})

	t.Run("min lines scales with length", func(t *testing.T) {
		b := NewLengthBand(1000, 2000)
		// ceil(900/35) = 26
		assert.Equal(t, 26, b.MinLines)
	})

	t.Run("band invariant", func(t *testing.T) {
		// 100 字以上のターゲットでは min ≤ target ≤ max が成り立つ
		for _, n := range []int{100, 350, 777, 2000, 9999} {
			b := NewLengthBand(n, 2000)
			assert.LessOrEqual(t, b.MinLen, b.TargetLen, "target=%d", n)
			assert.LessOrEqual(t, b.TargetLen, b.MaxLen, "target=%d", n)
		}
	})

	t.Run("accept floor", func(t *testing.T) {
		b := NewLengthBand(350, 2000)
		assert.Equal(t, 315, b.AcceptFloor())
	})
}

func TestParseCharacters(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"ascii comma", "太郎,次郎", []string{"太郎", "次郎"}},
		{"ja comma", "太郎、次郎", []string{"太郎", "次郎"}},
		{"mixed and spaces", " 太郎 、 次郎 ,三郎", []string{"太郎", "次郎", "三郎"}},
		{"capped at four", "a,b,c,d,e,f", []string{"a", "b", "c", "d"}},
		{"empty falls back", "", []string{"A", "B"}},
		{"only commas falls back", "、、,,", []string{"A", "B"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseCharacters(tc.in))
		})
	}
}

func TestNewBrief(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		b := NewBrief("", "", "", 0, 2000, TechniqueSelection{}, "en", "English", false)
		assert.Equal(t, "身近な題材", b.Theme)
		assert.Equal(t, "一般", b.Genre)
		assert.Equal(t, []string{"A", "B"}, b.Characters)
		assert.Equal(t, 350, b.Band.TargetLen)
	})

	t.Run("input capped for non cjk", func(t *testing.T) {
		long := strings.Repeat("x", InputCharLimit+500)
		b := NewBrief(long, "", "", 0, 2000, TechniqueSelection{}, "en", "English", true)
		assert.Equal(t, InputCharLimit, RuneLen(b.Theme))
	})

	t.Run("input not capped for cjk", func(t *testing.T) {
		long := strings.Repeat("あ", InputCharLimit+500)
		b := NewBrief(long, "", "", 0, 2000, TechniqueSelection{}, "ja", "Japanese", false)
		assert.Equal(t, InputCharLimit+500, RuneLen(b.Theme))
	})

	t.Run("tsukkomi is second character", func(t *testing.T) {
		b := NewBrief("", "", "ボケ山,ツッコミ川", 0, 2000, TechniqueSelection{}, "ja", "Japanese", false)
		assert.Equal(t, "ツッコミ川", b.TsukkomiName())
	})

	t.Run("single character falls back to B", func(t *testing.T) {
		b := NewBrief("", "", "独り", 0, 2000, TechniqueSelection{}, "ja", "Japanese", false)
		assert.Equal(t, "B", b.TsukkomiName())
	})
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "あいう", TruncateByRunes("あいうえお", 3))
	assert.Equal(t, "abc", TruncateByRunes("abc", 10))
	assert.Equal(t, "", TruncateByRunes("abc", 0))
}
