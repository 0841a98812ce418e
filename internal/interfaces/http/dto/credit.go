package dto

// AddCreditsRequest 充值请求
type AddCreditsRequest struct {
	UserID string `json:"user_id"`
	Delta  int    `json:"delta"`
}

// AddCreditsResponse 充值响应
type AddCreditsResponse struct {
	OK          bool `json:"ok"`
	PaidCredits int  `json:"paid_credits"`
}

// GetCreditsRequest 余额查询请求
type GetCreditsRequest struct {
	UserID string `json:"user_id"`
}

// GetCreditsResponse 余额查询响应。
// 不存在的用户按零余额返回。
type GetCreditsResponse struct {
	PaidCredits int `json:"paid_credits"`
}
