package script

import (
	"fmt"
	"math/rand"
	"strings"
)

// PromptBundle 组装完成的提示词与派生元信息
type PromptBundle struct {
	Prompt       string
	SystemLines  []string
	Plan         TechniquePlan
	TsukkomiName string
}

// structureGuide 提示词中固定三段构成的详细说明
var structureGuide = []string{
	"- 1) Setup / Introduction：The “setup” phase that establishes the premise, situation, and shared understanding between the performers and the audience. It prepares the ground for later jokes (boke) or punchlines (ochi) by defining the context, tone, and logic of the world. Comparable to: the “premise” or “framing” in Western sketch or stand-up comedy.",
	"- 2) Callback / Foreshadowing Payoff：A technique where information, phrases, or visual motifs introduced earlier (in the furi) reappear later in a surprising and meaningful way. The laughter comes from the audience’s recognition and the clever re-connection of elements that seemed trivial before. Comparable to: “callback jokes” or “Chekhov’s gun” used comedically.",
	"- 3) Clear Final Punch：The definitive punchline or closing expression that resolves all the comedic tension and misalignments built throughout the act. It serves as the narrative and emotional endpoint — signaling to the audience, “this is the laugh we’ve been building toward.” Comparable to: the “punchline” or “button” in Western comedy, but in owarai, it carries stronger structural and rhythmic significance.",
}

// ComposePrompt 组装主生成提示词。
// 语言锁定块置于最前，随后是条件、构成、必用技法与数量格式约束。
func ComposePrompt(brief *GenerationBrief, rng *rand.Rand) *PromptBundle {
	plan := BuildTechniquePlan(brief.Selection, rng)
	band := brief.Band
	tsukkomi := brief.TsukkomiName()
	langUpper := strings.ToUpper(brief.LangName)

	lines := []string{
		"### STRICT LANGUAGE INSTRUCTION",
		fmt.Sprintf("All output (title, lines, and punctuation) MUST BE 100%% IN %s.", langUpper),
		"Do NOT use, mix, or include ANY OTHER LANGUAGE (no Japanese, no Chinese, no transliterations, no mixed phrases).",
		fmt.Sprintf("If any non-%s characters appear, IMMEDIATELY REWRITE them entirely in %s before responding.", brief.LangName, brief.LangName),
		"### CONDITIONS",
		fmt.Sprintf("■Theme: %s", brief.Theme),
		fmt.Sprintf("■Genre: %s", brief.Genre),
		fmt.Sprintf("■Characters: %s", strings.Join(brief.Characters, "、")),
		fmt.Sprintf("■Target word count: %d〜%dText (Fit within this area)", band.MinLen, band.MaxLen),
		"",
		"■Required configuration",
	}
	lines = append(lines, structureGuide...)
	lines = append(lines,
		"",
		"■Required techniques (do not list technique names in the main text)",
		"- All of the following techniques must be used at least once in the main text as specific lines or developments that are conveyed to the audience (non-use is not allowed).",
		"- Before outputting, perform a self-check, and if there are any unused techniques, add to the main text to fulfill this requirement.",
		plan.Guideline,
		"",
		"■Strict adherence to quantity and format",
		fmt.Sprintf("- Dialogue must contain at least %d lines (aim for 25-40 characters per line).", band.MinLines),
		"- Each line must follow the format ”Name: Line“ (using a half-width colon : followed by a half-width space).",
		"- Always insert one blank line between each line of dialogue (leave one blank line between A's line and B's line).",
		"- Output must be the main text only (no explanations, meta descriptions, or abrupt endings allowed).",
		fmt.Sprintf("- Always end with the line %s (include this line in the character count). ", Outro(tsukkomi)),
		"- Do not directly write ”metaphor,“ ”irony,“ or ‘satire’ in the main text.",
		"- Always create a ”tense state“ and a ”state where it is relieved.“",
		"- Use the ”selected technique“ thoroughly.",
		"■Headings and Formatting",
		"- Place the 【Title】 on the first line, followed immediately by the main text (comedy routine)",
		"- Always insert one blank line between the title and the main text",
		"■Other",
		"- Use expressions that are unexpected yet satisfying to humans.",
		"- Reflect the characters' personalities.",
		"- Use expressions that make the audience laugh heartily.",
		"- Sprinkle in irony and satire here and there.",
	)

	system := []string{
		fmt.Sprintf("You must produce output STRICTLY and EXCLUSIVELY in %s. Do not write or include any other language. Mixed-language or bilingual responses are FORBIDDEN.", brief.LangName),
		fmt.Sprintf("You are a professional comedy writer. Write a complete Manzai script only in %s, ready for performance. Do NOT include translations, explanations, or other languages.", brief.LangName),
	}

	return &PromptBundle{
		Prompt:       strings.Join(lines, "\n"),
		SystemLines:  system,
		Plan:         plan,
		TsukkomiName: tsukkomi,
	}
}

// ComposeContinuationPrompt 组装续写提示词。
// seed 为去掉收尾台词后的既有正文，remaining 为尚缺的字符数。
func ComposeContinuationPrompt(seed string, remaining int, tsukkomiName string) string {
	lines := []string{
		"The following is the text of a manzai routine written only partially. Please continue it as is.",
		"・Do not include the title",
		"・Do not repeat previous lines or material",
		fmt.Sprintf("・Expand naturally for at least %d characters, ending with %s", remaining, Outro(tsukkomiName)),
		"・Each line follows the format ”Name: Line“ (half-width colon + space)",
		"・Always insert one blank line between lines of dialogue",
		"",
		"【Previous text】",
		seed,
	}
	return strings.Join(lines, "\n")
}

// ContinuationSystemLine 续写调用的 system 提示
const ContinuationSystemLine = "You are a talented comedy duo. Please output only the “continuation” of the main text."
