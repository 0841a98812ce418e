package script

import (
	"regexp"
	"strings"
)

// ClosingLine 收尾台词的固定文本（不随输出语言变化）
const ClosingLine = "That's allright!"

var (
	titleSplitRe = regexp.MustCompile(`\r?\n\r?\n`)
	codeFenceRe  = regexp.MustCompile("```[\\s\\S]*?```")
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s.*$`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
	turnLineRe   = regexp.MustCompile(`^[^:：]+:\s`)
)

// closingPuncts 可作为软切点的句末标点
var closingPuncts = []rune{'。', '！', '？', '…', '♪'}

// Outro 返回完整收尾行
func Outro(speaker string) string {
	return speaker + ": " + ClosingLine
}

// SplitTitleAndBody 以首个空行边界切分模型原始输出。
// 第一段去掉首尾的【】后作为标题，其余全部作为正文；
// 没有空行边界时标题为空，整体视为正文。
func SplitTitleAndBody(raw string) (title, body string) {
	loc := titleSplitRe.FindStringIndex(raw)
	if loc == nil {
		return "", strings.TrimSpace(raw)
	}

	title = strings.TrimSpace(raw[:loc[0]])
	title = strings.TrimPrefix(title, "【")
	title = strings.TrimSuffix(title, "】")
	body = strings.TrimSpace(raw[loc[1]:])
	return title, body
}

// NormalizeSpeakerColons 将行首「说话人＋冒号」统一为半角冒号加单个空格。
// 全角冒号、冒号后多余空白均被归一；不含冒号的行保持原样。
func NormalizeSpeakerColons(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		idx := strings.IndexAny(line, ":：")
		if idx <= 0 {
			continue
		}
		name := line[:idx]
		rest := line[idx:]
		if strings.HasPrefix(rest, "：") {
			rest = strings.TrimPrefix(rest, "：")
		} else {
			rest = strings.TrimPrefix(rest, ":")
		}
		rest = strings.TrimLeft(rest, " \t")
		lines[i] = name + ": " + rest
	}
	return strings.Join(lines, "\n")
}

// EnsureBlankLineBetweenTurns 保证相邻两条台词之间恰好一个空行。
// 先压缩连续空行，再在相邻台词行之间补空行。
func EnsureBlankLineBetweenTurns(text string) string {
	raw := strings.Split(text, "\n")

	// 压缩连续空行
	compact := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			if len(compact) > 0 && strings.TrimSpace(compact[len(compact)-1]) == "" {
				continue
			}
		}
		compact = append(compact, line)
	}

	out := make([]string, 0, len(compact)*2)
	for i, line := range compact {
		out = append(out, line)
		if i+1 < len(compact) && isTurnLine(line) && isTurnLine(compact[i+1]) {
			out = append(out, "")
		}
	}

	return multiBlankRe.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
}

func isTurnLine(line string) bool {
	return turnLineRe.MatchString(strings.TrimSpace(line))
}

// EnsureTsukkomiOutro 保证正文以固定收尾台词结束。
// 已经以收尾台词结束时不重复追加；空正文时仅返回收尾行。
func EnsureTsukkomiOutro(text, speaker string) string {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if trimmed == "" {
		return Outro(speaker)
	}
	if strings.HasSuffix(trimmed, ClosingLine) {
		return trimmed
	}
	return trimmed + "\n" + Outro(speaker)
}

// EnforceCharLimit 执行字数硬限制并清理标记残渣。
// 超长时优先在换行或句末标点处软切；软切点不足 maxLen 的 90% 则硬切。
// allowOverflow 为 true 时只做清理不截断。所有下标均按 rune 计。
func EnforceCharLimit(text string, minLen, maxLen int, allowOverflow bool) string {
	if text == "" {
		return ""
	}

	t := strings.TrimSpace(text)
	t = codeFenceRe.ReplaceAllString(t, "")
	t = headingRe.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)

	runes := []rune(t)
	if !allowOverflow && len(runes) > maxLen {
		cut := softCutPos(runes, maxLen)
		if cut < 0 || float64(cut) < float64(maxLen)*0.9 {
			cut = maxLen
		}
		t = strings.TrimSpace(string(runes[:cut]))
		if !endsWithClosingPunct(t) {
			t += "。"
		}
	}

	if RuneLen(t) < minLen && t != "" && !endsWithClosingPunct(t) {
		t += "。"
	}
	return t
}

// softCutPos 返回 maxLen 之内（含）最靠后的换行或句末标点下标，找不到返回 -1
func softCutPos(runes []rune, maxLen int) int {
	best := -1
	limit := maxLen
	if limit >= len(runes) {
		limit = len(runes) - 1
	}
	for i := limit; i >= 0; i-- {
		r := runes[i]
		if r == '\n' {
			if i > best {
				best = i
			}
			break
		}
	}
	for i := limit; i > best; i-- {
		if isClosingPunct(runes[i]) {
			best = i
			break
		}
	}
	return best
}

func isClosingPunct(r rune) bool {
	for _, p := range closingPuncts {
		if r == p {
			return true
		}
	}
	return false
}

func endsWithClosingPunct(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	return isClosingPunct(runes[len(runes)-1])
}
