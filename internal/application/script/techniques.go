package script

import (
	"math/rand"
	"strings"
)

// BokeDefs ボケ技法定义，键为技法 ID
var BokeDefs = map[string]string{
	"IIMACHIGAI":    "Mispronunciation/Mishearing: A comedic effect created by unexpected phonetic shifts.",
	"HIYU":          "Metaphor: A joke that exaggerates through metaphor.",
	"GYAKUSETSU":    "Paradox: A joke that sounds reasonable at first but falls apart logically.",
	"GIJI_RONRI":    "Pseudo-logical joke: A joke that appears logical but is fundamentally flawed.",
	"TSUKKOMI_BOKE": "Tsukkomi-style punchline: A punchline where the tsukkomi's remark sets up the next joke.",
	"RENSA":         "Chain of jokes: A series of jokes that trigger subsequent jokes, creating a sense of acceleration.",
	"KOTOBA_ASOBI":  "Wordplay: Playing around with language through puns, rhymes, etc.",
}

// TsukkomiDefs ツッコミ技法定义
var TsukkomiDefs = map[string]string{
	"ODOROKI_GIMON": "Surprise / Question Tsukkomi： A retort that instantly voices surprise or doubt on behalf of the audience.Often delivered with wide-eyed astonishment or an exclamation like “What are you talking about?!” — this style bridges the performer and the audience by reacting naturally to the boke’s (funny man’s) absurd statement.",
	"AKIRE_REISEI":  "Exasperated / Calm Tsukkomi：A reaction that suppresses emotion and stays cool, almost as if giving up on the boke’s nonsense.The humor comes from understatement and composure — the calmness itself contrasts sharply with the chaos, making it funnier.",
	"OKORI":         "Angry Tsukkomi：A retort delivered with mock anger or heightened emotion.The tsukkomi acts furious — shouting or scolding — but it’s performed in a controlled, comedic way that signals playfulness rather than real aggression.",
	"KYOKAN":        "Empathetic Tsukkomi：The tsukkomi first empathizes with the boke’s emotion or idea — “Yeah, I get that…” — and then humorously corrects or challenges it.This creates a sense of warmth and human connection before the punchline.",
	"META":          "Meta Tsukkomi： A self-aware retort that breaks the fourth wall by commenting on the manzai performance itself — its format, timing, or comedic clichés.It humoously points out the structure of the act, like saying “That’s not how manzai is supposed to go!” or “You’re skipping the setup!”",
}

// GeneralDefs 全般構成技法定义
var GeneralDefs = map[string]string{
	"SANDAN_OCHI":      "Three-Step Punchline：A structure where the first two lines set a pattern, and the third delivers an unexpected twist.The humor arises from rhythmic repetition and the final subversion — setup, setup, surprise.Comparable to: the “rule of three” in Western comedy, but often with tighter rhythm and visual payoff.",
	"GYAKUHARI":        "Reversal Logic：A technique that deliberately goes against audience expectations or common sense.The comedian takes a predictable setup and turns it upside down to reveal absurd or ironic truth.Comparable to: “contrarian humor” or “bait-and-switch jokes.”",
	"TENKAI_HAKAI":     "Narrative Disruption：Intentionally breaking a story’s flow or inserting a completely unrelated element to create absurdity.The fun comes from destroying the narrative momentum just as it feels stable.Comparable to: “breaking narrative structure” or “anti-comedy” moments.",
	"KANCHIGAI_TEISEI": "Misunderstanding and Correction：A classic boke–tsukkomi pattern where the boke (funny man) misunderstands something, and the tsukkomi (straight man) sharply corrects it.The rhythm of “mistake → correction” drives the comedic timing.Comparable to: “misinterpretation gags” or “semantic confusion” jokes.",
	"SURECHIGAI":       "Miscommunication Comedy：A situation where both characters keep talking past each other because their assumptions differ.The humor builds from their continued failure to align perspectives.Comparable to: “cross-talk” or “comedic misunderstanding dialogue.”",
	"TACHIBA_GYAKUTEN": "Role Reversal：Midway or at the end, the power balance or social position between characters flips.",
}

// baseStructure 固定的三段构成，general 技法标签追加在其后
var baseStructure = []string{
	"Setup / Introduction",
	"Callback / Foreshadowing Payoff",
	"Clear Final Punch",
}

// fallbackPool 未指定技法时的随机补充候选（Metaphor 必选，此外再抽 1〜3 个）
var fallbackPool = []string{
	"Satire",
	"Irony",
	"Surprise and Conviction",
	"Misunderstanding and Correction",
	"Miscommunication comedy",
	"Role Reversal comedy",
	"Exaggeration of Specific Examples",
}

const fallbackMandatory = "Metaphor"

// TechniquePlan 技法选择的解析结果，驱动提示词与响应元信息
type TechniquePlan struct {
	// Guideline 注入提示词的技法说明块
	Guideline string
	// Techniques 响应 meta 的技法标签（boke + tsukkomi）
	Techniques []string
	// Structure 响应 meta 的构成列表（固定三段 + general 标签）
	Structure []string
}

// BuildTechniquePlan 将显式选择解析为提示词指引与元信息标签。
// 没有任何有效选择时走随机兜底：必含 Metaphor，再从候选池抽 1〜3 个。
func BuildTechniquePlan(sel TechniqueSelection, rng *rand.Rand) TechniquePlan {
	bokeDefs := resolveDefs(sel.Boke, BokeDefs)
	tsukkomiDefs := resolveDefs(sel.Tsukkomi, TsukkomiDefs)
	generalDefs := resolveDefs(sel.General, GeneralDefs)

	structure := append([]string{}, baseStructure...)

	if len(bokeDefs)+len(tsukkomiDefs)+len(generalDefs) > 0 {
		techniques := make([]string, 0, len(bokeDefs)+len(tsukkomiDefs))
		for _, d := range append(append([]string{}, bokeDefs...), tsukkomiDefs...) {
			techniques = append(techniques, labelize(d))
		}
		for _, d := range generalDefs {
			structure = append(structure, labelize(d))
		}
		return TechniquePlan{
			Guideline:  buildGuideline(bokeDefs, tsukkomiDefs, generalDefs),
			Techniques: techniques,
			Structure:  structure,
		}
	}

	labels := randomFallback(rng)
	var b strings.Builder
	b.WriteString("【Techniques to be adopted】")
	for _, t := range labels {
		b.WriteString("\n- ")
		b.WriteString(t)
	}
	return TechniquePlan{
		Guideline:  b.String(),
		Techniques: labels,
		Structure:  structure,
	}
}

// buildGuideline 按三类拼装技法说明块，空类不输出小节标题
func buildGuideline(boke, tsukkomi, general []string) string {
	var parts []string
	if len(boke) > 0 {
		parts = append(parts, "【ボケ技法】")
		for _, d := range boke {
			parts = append(parts, "- "+d)
		}
	}
	if len(tsukkomi) > 0 {
		parts = append(parts, "【ツッコミ技法】")
		for _, d := range tsukkomi {
			parts = append(parts, "- "+d)
		}
	}
	if len(general) > 0 {
		parts = append(parts, "【全般の構成技法】")
		for _, d := range general {
			parts = append(parts, "- "+d)
		}
	}
	return strings.Join(parts, "\n")
}

// labelize 取定义文本首个冒号前的短标签（全半角冒号均可）
func labelize(def string) string {
	if i := strings.IndexAny(def, ":："); i >= 0 {
		return strings.TrimSpace(def[:i])
	}
	return strings.TrimSpace(def)
}

// resolveDefs 按选择顺序取出有效定义，未知 ID 静默忽略
func resolveDefs(ids []string, defs map[string]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, ok := defs[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// randomFallback 生成随机技法标签列表
func randomFallback(rng *rand.Rand) []string {
	pool := make([]string, len(fallbackPool))
	copy(pool, fallbackPool)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	n := rng.Intn(3) + 1
	out := make([]string, 0, n+1)
	out = append(out, fallbackMandatory)
	out = append(out, pool[:n]...)
	return out
}
