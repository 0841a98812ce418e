// Package script 提供漫才台本生成的核心能力：
// 提示词组装、文本整形流水线、以及长度收敛引擎。
package script

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTargetLength 未指定目标字数时的默认值
	DefaultTargetLength = 350
	// DefaultMaxTargetLength 目标字数上限的默认值
	DefaultMaxTargetLength = 2000
	// MaxCharacters 登场人物上限
	MaxCharacters = 4
	// InputCharLimit 非日中文输入的单字段长度上限
	InputCharLimit = 4000

	defaultTheme      = "身近な題材"
	defaultGenre      = "一般"
	defaultCharacters = "A,B"
)

// TechniqueSelection 用户显式选择的技法 ID，按三类分组
type TechniqueSelection struct {
	Boke     []string
	Tsukkomi []string
	General  []string
}

// Empty 判断是否没有任何显式选择
func (s TechniqueSelection) Empty() bool {
	return len(s.Boke)+len(s.Tsukkomi)+len(s.General) == 0
}

// GenerationBrief 单次生成请求的输入快照，构造后不可变
type GenerationBrief struct {
	Theme      string
	Genre      string
	Characters []string
	Band       LengthBand
	Selection  TechniqueSelection
	LangCode   string
	LangName   string
}

// LengthBand 由请求字数派生的接受区间
type LengthBand struct {
	TargetLen int
	MinLen    int
	MaxLen    int
	MinLines  int
}

// NewLengthBand 计算长度区间。
// 不变式：MinLen ≤ TargetLen ≤ MaxLen。
func NewLengthBand(requested, maxTarget int) LengthBand {
	if maxTarget <= 0 {
		maxTarget = DefaultMaxTargetLength
	}
	target := requested
	if target <= 0 {
		target = DefaultTargetLength
	}
	if target > maxTarget {
		target = maxTarget
	}

	minLen := target * 9 / 10
	if minLen < 100 {
		minLen = 100
	}
	maxLen := (target*11 + 9) / 10
	minLines := (minLen + 34) / 35
	if minLines < 12 {
		minLines = 12
	}
	return LengthBand{
		TargetLen: target,
		MinLen:    minLen,
		MaxLen:    maxLen,
		MinLines:  minLines,
	}
}

// AcceptFloor 计费下限：低于目标字数 90% 的结果不扣费
func (b LengthBand) AcceptFloor() int {
	return b.TargetLen * 9 / 10
}

// NewBrief 构造请求快照，缺省字段回退到固定占位值。
// capInput 为 true 时对 theme/genre/characters 做长度截断（非日中文输入）。
func NewBrief(theme, genre, characters string, length, maxTarget int, sel TechniqueSelection, langCode, langName string, capInput bool) *GenerationBrief {
	if capInput {
		theme = TruncateByRunes(theme, InputCharLimit)
		genre = TruncateByRunes(genre, InputCharLimit)
		characters = TruncateByRunes(characters, InputCharLimit)
	}

	if strings.TrimSpace(theme) == "" {
		theme = defaultTheme
	} else {
		theme = strings.TrimSpace(theme)
	}
	if strings.TrimSpace(genre) == "" {
		genre = defaultGenre
	} else {
		genre = strings.TrimSpace(genre)
	}

	return &GenerationBrief{
		Theme:      theme,
		Genre:      genre,
		Characters: parseCharacters(characters),
		Band:       NewLengthBand(length, maxTarget),
		Selection:  sel,
		LangCode:   langCode,
		LangName:   langName,
	}
}

// TsukkomiName 返回收尾台词的说话人（第二位登场人物）
func (b *GenerationBrief) TsukkomiName() string {
	if len(b.Characters) >= 2 {
		return b.Characters[1]
	}
	return "B"
}

// parseCharacters 以全半角逗号切分登场人物，最多保留 4 人
func parseCharacters(s string) []string {
	if strings.TrimSpace(s) == "" {
		s = defaultCharacters
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '、' || r == ','
	})
	names := make([]string, 0, MaxCharacters)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		names = append(names, p)
		if len(names) == MaxCharacters {
			break
		}
	}
	if len(names) == 0 {
		names = []string{"A", "B"}
	}
	return names
}

// TruncateByRunes 按 rune 数量截断字符串
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// RuneLen 统计字符数（长度判定一律按 rune）
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
