package script

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestBuildTechniquePlanWithSelections(t *testing.T) {
	sel := TechniqueSelection{
		Boke:     []string{"HIYU", "KOTOBA_ASOBI"},
		Tsukkomi: []string{"OKORI"},
		General:  []string{"SANDAN_OCHI"},
	}
	plan := BuildTechniquePlan(sel, testRNG())

	// techniques は boke + tsukkomi のラベルのみ
	assert.Equal(t, []string{"Metaphor", "Wordplay", "Angry Tsukkomi"}, plan.Techniques)

	// structure は固定三段 + general ラベル
	require.Len(t, plan.Structure, 4)
	assert.Equal(t, "Setup / Introduction", plan.Structure[0])
	assert.Equal(t, "Three-Step Punchline", plan.Structure[3])

	// guideline はカテゴリ見出しと定義全文を含む
	assert.Contains(t, plan.Guideline, "【ボケ技法】")
	assert.Contains(t, plan.Guideline, "【ツッコミ技法】")
	assert.Contains(t, plan.Guideline, "【全般の構成技法】")
	assert.Contains(t, plan.Guideline, BokeDefs["HIYU"])
}

func TestBuildTechniquePlanIgnoresUnknownIDs(t *testing.T) {
	sel := TechniqueSelection{
		Boke: []string{"NO_SUCH", "HIYU"},
	}
	plan := BuildTechniquePlan(sel, testRNG())
	assert.Equal(t, []string{"Metaphor"}, plan.Techniques)
	assert.NotContains(t, plan.Guideline, "NO_SUCH")
}

func TestBuildTechniquePlanRandomFallback(t *testing.T) {
	plan := BuildTechniquePlan(TechniqueSelection{}, testRNG())

	// Metaphor 必選、追加は 1〜3 件
	require.NotEmpty(t, plan.Techniques)
	assert.Equal(t, "Metaphor", plan.Techniques[0])
	assert.GreaterOrEqual(t, len(plan.Techniques), 2)
	assert.LessOrEqual(t, len(plan.Techniques), 4)

	for _, tech := range plan.Techniques[1:] {
		assert.Contains(t, fallbackPool, tech)
	}

	assert.True(t, strings.HasPrefix(plan.Guideline, "【Techniques to be adopted】"))
	for _, tech := range plan.Techniques {
		assert.Contains(t, plan.Guideline, "- "+tech)
	}

	// 構成は固定三段のまま
	assert.Equal(t, baseStructure, plan.Structure)
}

func TestBuildTechniquePlanAllInvalidFallsBack(t *testing.T) {
	sel := TechniqueSelection{Boke: []string{"BOGUS"}, General: []string{"ALSO_BOGUS"}}
	plan := BuildTechniquePlan(sel, testRNG())
	assert.Equal(t, "Metaphor", plan.Techniques[0])
}

func TestBuildTechniquePlanDeterministicWithSeed(t *testing.T) {
	p1 := BuildTechniquePlan(TechniqueSelection{}, rand.New(rand.NewSource(7)))
	p2 := BuildTechniquePlan(TechniqueSelection{}, rand.New(rand.NewSource(7)))
	assert.Equal(t, p1.Techniques, p2.Techniques)
}

func TestLabelize(t *testing.T) {
	assert.Equal(t, "Metaphor", labelize("Metaphor: A joke that exaggerates through metaphor."))
	assert.Equal(t, "Angry Tsukkomi", labelize(TsukkomiDefs["OKORI"]))
	assert.Equal(t, "no colon", labelize("no colon"))
}
