// Package lang 提供输出语言解析能力。
// 显式语言标签优先，其次解析 Accept-Language，最终兜底到英语。
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultCode 无法解析时的兜底语言
const DefaultCode = "en"

// supportedCodes 支持的基准语言代码（30 语言）
var supportedCodes = []string{
	"en", "ja", "zh-CN", "zh-TW", "ko", "es", "fr", "de", "pt", "pt-BR",
	"it", "ru", "uk", "ar", "hi", "id", "ms", "th", "vi", "tr",
	"nl", "pl", "sv", "da", "no", "fi", "he", "el", "cs", "ro",
}

// langNames 提示词中使用的语言名（英语表记，模型不易误解）
var langNames = map[string]string{
	"en":    "English",
	"ja":    "Japanese",
	"zh-CN": "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
	"ko":    "Korean",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"pt":    "Portuguese",
	"pt-BR": "Portuguese (Brazil)",
	"it":    "Italian",
	"ru":    "Russian",
	"uk":    "Ukrainian",
	"ar":    "Arabic",
	"hi":    "Hindi",
	"id":    "Indonesian",
	"ms":    "Malay",
	"th":    "Thai",
	"vi":    "Vietnamese",
	"tr":    "Turkish",
	"nl":    "Dutch",
	"pl":    "Polish",
	"sv":    "Swedish",
	"da":    "Danish",
	"no":    "Norwegian",
	"fi":    "Finnish",
	"he":    "Hebrew",
	"el":    "Greek",
	"cs":    "Czech",
	"ro":    "Romanian",
}

// aliases 地域/别名折叠到基准代码（小写键）
var aliases = map[string]string{
	// Chinese
	"zh":      "zh-cn",
	"zh-hans": "zh-cn",
	"zh-cn":   "zh-cn",
	"zh-sg":   "zh-cn",
	"zh-my":   "zh-cn",
	"zh-hant": "zh-tw",
	"zh-tw":   "zh-tw",
	"zh-hk":   "zh-tw",

	// Portuguese
	"pt-pt": "pt",
	"pt":    "pt",
	"pt-br": "pt-br",

	// Norwegian
	"nb": "no",
	"nn": "no",
	"no": "no",
}

// Normalize 将任意语言标签折叠为基准代码；无法解析时返回空串
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	tag := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(input), "_", "-"))

	if a, ok := aliases[tag]; ok {
		tag = a
	}

	// 完全匹配
	for _, c := range supportedCodes {
		if strings.ToLower(c) == tag {
			return c
		}
	}

	// region 付きは primary subtag にフォールバック（例: es-MX → es）
	primary := tag
	if i := strings.Index(tag, "-"); i > 0 {
		primary = tag[:i]
	}
	for _, c := range supportedCodes {
		if c == primary {
			return c
		}
	}
	if primary == "en" {
		return "en"
	}

	return ""
}

// Resolve 决定输出语言代码：
//   - explicit（明示指定）最优先
//   - 其次按优先顺扫描 Accept-Language
//   - 都不匹配时返回 DefaultCode
func Resolve(explicit, acceptLanguage string) string {
	if code := Normalize(explicit); code != "" {
		return code
	}

	if strings.TrimSpace(acceptLanguage) != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil {
			for _, t := range tags {
				if code := Normalize(t.String()); code != "" {
					return code
				}
			}
		}
	}

	return DefaultCode
}

// Name 返回代码对应的语言名；未知代码回退到英语名
func Name(code string) string {
	if name, ok := langNames[code]; ok {
		return name
	}
	return langNames[DefaultCode]
}

// IsCJKInput 判断代码是否为日语/中文（这两类输入不做长度截断）
func IsCJKInput(code string) bool {
	lower := strings.ToLower(code)
	return strings.HasPrefix(lower, "ja") || strings.HasPrefix(lower, "zh")
}
