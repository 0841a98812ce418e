package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ja", "ja"},
		{"JA", "ja"},
		{"en-US", "en"},
		{"zh", "zh-CN"},
		{"zh-Hans", "zh-CN"},
		{"zh-Hant", "zh-TW"},
		{"zh-HK", "zh-TW"},
		{"zh_CN", "zh-CN"},
		{"pt", "pt"},
		{"pt-PT", "pt"},
		{"pt-BR", "pt-BR"},
		{"nb", "no"},
		{"nn", "no"},
		{"es-MX", "es"},
		{"fr-CA", "fr"},
		{"", ""},
		{"  ", ""},
		{"tlh", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("explicit wins over header", func(t *testing.T) {
		assert.Equal(t, "ja", Resolve("ja", "fr-CH, fr;q=0.9, en;q=0.8"))
	})

	t.Run("accept language fallback", func(t *testing.T) {
		assert.Equal(t, "fr", Resolve("", "fr-CH, fr;q=0.9, en;q=0.8"))
	})

	t.Run("skips unsupported entries", func(t *testing.T) {
		assert.Equal(t, "ko", Resolve("", "tlh, ko;q=0.8"))
	})

	t.Run("default when nothing matches", func(t *testing.T) {
		assert.Equal(t, DefaultCode, Resolve("", ""))
		assert.Equal(t, DefaultCode, Resolve("xx-YY", "zz"))
	})

	t.Run("invalid header falls back to default", func(t *testing.T) {
		assert.Equal(t, DefaultCode, Resolve("", ";;;"))
	})
}

func TestName(t *testing.T) {
	assert.Equal(t, "Japanese", Name("ja"))
	assert.Equal(t, "Chinese (Simplified)", Name("zh-CN"))
	assert.Equal(t, "English", Name("unknown"))
}

func TestIsCJKInput(t *testing.T) {
	assert.True(t, IsCJKInput("ja"))
	assert.True(t, IsCJKInput("zh-TW"))
	assert.True(t, IsCJKInput("JA"))
	assert.False(t, IsCJKInput("en"))
	assert.False(t, IsCJKInput("ko"))
}
