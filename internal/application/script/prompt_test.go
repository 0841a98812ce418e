package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBrief(sel TechniqueSelection) *GenerationBrief {
	return NewBrief("学校生活", "日常", "太郎,花子", 350, 2000, sel, "ja", "Japanese", false)
}

func TestComposePrompt(t *testing.T) {
	bundle := ComposePrompt(testBrief(TechniqueSelection{Boke: []string{"HIYU"}}), testRNG())
	require.NotNil(t, bundle)

	t.Run("language lock leads the prompt", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(bundle.Prompt, "### STRICT LANGUAGE INSTRUCTION"))
		assert.Contains(t, bundle.Prompt, "MUST BE 100% IN JAPANESE.")
	})

	t.Run("conditions reflect the brief", func(t *testing.T) {
		assert.Contains(t, bundle.Prompt, "■Theme: 学校生活")
		assert.Contains(t, bundle.Prompt, "■Genre: 日常")
		assert.Contains(t, bundle.Prompt, "■Characters: 太郎、花子")
		assert.Contains(t, bundle.Prompt, "■Target word count: 315〜385Text")
	})

	t.Run("quantity rules use the band", func(t *testing.T) {
		assert.Contains(t, bundle.Prompt, "Dialogue must contain at least 12 lines")
	})

	t.Run("closing line names the tsukkomi", func(t *testing.T) {
		assert.Equal(t, "花子", bundle.TsukkomiName)
		assert.Contains(t, bundle.Prompt, "Always end with the line 花子: That's allright!")
	})

	t.Run("guideline embedded", func(t *testing.T) {
		assert.Contains(t, bundle.Prompt, BokeDefs["HIYU"])
	})

	t.Run("system lines pin the language", func(t *testing.T) {
		require.Len(t, bundle.SystemLines, 2)
		assert.Contains(t, bundle.SystemLines[0], "STRICTLY and EXCLUSIVELY in Japanese")
		assert.Contains(t, bundle.SystemLines[1], "professional comedy writer")
	})
}

func TestComposeContinuationPrompt(t *testing.T) {
	p := ComposeContinuationPrompt("A: ここまでの本文", 120, "花子")
	assert.Contains(t, p, "Expand naturally for at least 120 characters")
	assert.Contains(t, p, "花子: That's allright!")
	assert.True(t, strings.HasSuffix(p, "【Previous text】\nA: ここまでの本文"))
	assert.NotContains(t, p, "title】") // タイトルは含めない指示のみ
}
