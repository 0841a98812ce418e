// Package handler 提供 HTTP 请求处理器
package handler

import (
	"fmt"
	"net/http"

	"manzai-script-api/internal/application/lang"
	"manzai-script-api/internal/application/ledger"
	"manzai-script-api/internal/application/script"
	"manzai-script-api/internal/config"
	"manzai-script-api/internal/infrastructure/persistence/redis"
	"manzai-script-api/internal/interfaces/http/dto"
	perrors "manzai-script-api/pkg/errors"
	"manzai-script-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AppLangHeader 前端传递界面语言的请求头
const AppLangHeader = "X-App-Lang"

const (
	fallbackTitle = "（タイトル未設定）"
	fallbackText  = "（ネタの生成に失敗しました）"
)

// ScriptHandler 台本生成处理器
type ScriptHandler struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	engine *script.Engine
	cache  *redis.Cache
}

// NewScriptHandler 创建台本生成处理器
func NewScriptHandler(cfg *config.Config, ldg *ledger.Ledger, engine *script.Engine, cache *redis.Cache) *ScriptHandler {
	return &ScriptHandler{
		cfg:    cfg,
		ledger: ldg,
		engine: engine,
		cache:  cache,
	}
}

// Generate 台本生成接口。
// 后付费流程：先资格校验（无副作用），生成并整形成功后才扣费；
// 上游失败、空正文、低于 90% 下限时一律不扣费。
// @Summary 生成漫才台本
// @Tags Script
// @Accept json
// @Produce json
// @Success 200 {object} dto.GenerateScriptResponse
// @Failure 403 {object} dto.QuotaExceededResponse
// @Router /api/generate [post]
func (h *ScriptHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "bad params"})
		return
	}

	// 生成前：仅校验资格，不消费
	eligible, rec, err := h.ledger.CheckEligibility(ctx, req.UserID)
	if err != nil {
		logger.Error(ctx, "eligibility check failed", err, "user_id", req.UserID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "usage store unavailable"})
		return
	}
	if !eligible {
		usage, paid := 0, 0
		if rec != nil {
			usage, paid = rec.OutputCount, rec.PaidCredits
		}
		c.JSON(http.StatusForbidden, dto.QuotaExceededResponse{
			Error:       quotaExceededMessage(h.ledger.FreeQuota()),
			UsageCount:  usage,
			PaidCredits: paid,
		})
		return
	}

	// 语言决定：body 的 app_lang 最优先，其次 X-App-Lang，再退 Accept-Language
	explicit := req.AppLang
	if explicit == "" {
		explicit = c.GetHeader(AppLangHeader)
	}
	langCode := lang.Resolve(explicit, c.GetHeader("Accept-Language"))
	capInput := !lang.IsCJKInput(langCode)

	brief := script.NewBrief(
		req.Theme,
		req.Genre,
		req.Characters,
		req.Length,
		h.cfg.Quota.MaxTargetLength,
		script.TechniqueSelection{
			Boke:     req.Boke,
			Tsukkomi: req.Tsukkomi,
			General:  req.General,
		},
		langCode,
		lang.Name(langCode),
		capInput,
	)

	result, err := h.engine.Generate(ctx, brief)
	if err != nil {
		appErr := perrors.AsAppError(err)
		logger.Error(ctx, "script generation failed", err, "user_id", req.UserID, "lang", langCode)
		switch appErr.Code {
		case perrors.CodeEmptyOutput:
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Empty output"})
		default:
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: "completion request failed", Detail: appErr.Detail})
		}
		return
	}

	meta := dto.ScriptMeta{
		Structure:      result.Structure,
		Techniques:     result.Techniques,
		TargetLength:   result.Band.TargetLen,
		MinLength:      result.Band.MinLen,
		MaxLength:      result.Band.MaxLen,
		ActualLength:   result.ActualLen,
		CreditConsumed: false,
	}

	// 低于目标字数 90%：原样返回正文，但绝不扣费
	if !result.Accepted {
		meta.Reason = result.Reason
		meta.UsageCount, meta.PaidCredits = h.usageSnapshot(c, req.UserID)
		c.JSON(http.StatusOK, h.buildResponse(result, meta))
		return
	}

	// 成功：此时才消费（免费桶优先）
	if _, err := h.ledger.Charge(ctx, req.UserID); err != nil {
		logger.Error(ctx, "charge after success failed", err, "user_id", req.UserID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "usage store unavailable"})
		return
	}
	if h.cache != nil && req.UserID != "" {
		// 快照缓存失效失败只记日志
		if err := h.cache.InvalidateUsage(ctx, req.UserID); err != nil {
			logger.Warn(ctx, "usage cache invalidation failed", "user_id", req.UserID, "error", err.Error())
		}
	}

	meta.CreditConsumed = true
	meta.UsageCount, meta.PaidCredits = h.usageSnapshot(c, req.UserID)
	c.JSON(http.StatusOK, h.buildResponse(result, meta))
}

// usageSnapshot 尽力而为地读取扣费后的余量，失败时返回 null
func (h *ScriptHandler) usageSnapshot(c *gin.Context, userID string) (*int, *int) {
	if userID == "" {
		return nil, nil
	}
	rec, err := h.ledger.Snapshot(c.Request.Context(), userID)
	if err != nil {
		logger.Warn(c.Request.Context(), "usage snapshot after charge failed", "user_id", userID, "error", err.Error())
		return nil, nil
	}
	if rec == nil {
		zero := 0
		z2 := 0
		return &zero, &z2
	}
	usage, paid := rec.OutputCount, rec.PaidCredits
	return &usage, &paid
}

func (h *ScriptHandler) buildResponse(result *script.Result, meta dto.ScriptMeta) dto.GenerateScriptResponse {
	title := result.Title
	if title == "" {
		title = fallbackTitle
	}
	text := result.Body
	if text == "" {
		text = fallbackText
	}
	return dto.GenerateScriptResponse{
		Title: title,
		Text:  text,
		Meta:  meta,
	}
}

func quotaExceededMessage(freeQuota int) string {
	return fmt.Sprintf("You have reached your usage limit (%d times) and are running low on credits.", freeQuota)
}
