// Package dto 定义 HTTP 请求/响应结构
package dto

// GenerateScriptRequest 台本生成请求
type GenerateScriptRequest struct {
	Theme      string   `json:"theme"`
	Genre      string   `json:"genre"`
	Characters string   `json:"characters"`
	Length     int      `json:"length"`
	Boke       []string `json:"boke"`
	Tsukkomi   []string `json:"tsukkomi"`
	General    []string `json:"general"`
	UserID     string   `json:"user_id"`
	AppLang    string   `json:"app_lang"`
}

// ScriptMeta 生成结果的元信息。
// usage_count / paid_credits 读取失败时为 null，不影响正文返回。
type ScriptMeta struct {
	Structure      []string `json:"structure"`
	Techniques     []string `json:"techniques"`
	UsageCount     *int     `json:"usage_count"`
	PaidCredits    *int     `json:"paid_credits"`
	TargetLength   int      `json:"target_length"`
	MinLength      int      `json:"min_length"`
	MaxLength      int      `json:"max_length"`
	ActualLength   int      `json:"actual_length"`
	CreditConsumed bool     `json:"credit_consumed"`
	Reason         string   `json:"reason,omitempty"`
}

// GenerateScriptResponse 台本生成成功响应
type GenerateScriptResponse struct {
	Title string     `json:"title"`
	Text  string     `json:"text"`
	Meta  ScriptMeta `json:"meta"`
}

// QuotaExceededResponse 资格校验拒绝响应
type QuotaExceededResponse struct {
	Error       string `json:"error"`
	UsageCount  int    `json:"usage_count"`
	PaidCredits int    `json:"paid_credits"`
}

// ErrorResponse 通用错误响应
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
