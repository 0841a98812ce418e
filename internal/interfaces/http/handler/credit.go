package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"manzai-script-api/internal/application/ledger"
	"manzai-script-api/internal/domain/entity"
	"manzai-script-api/internal/infrastructure/persistence/redis"
	"manzai-script-api/internal/interfaces/http/dto"
	"manzai-script-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// snapshotTTL 余额快照缓存时长。扣费/充值后主动失效，
// TTL 只是兜底，允许极短的陈旧读。
const snapshotTTL = 10 * time.Second

// CreditHandler 付费积分处理器
type CreditHandler struct {
	ledger *ledger.Ledger
	cache  *redis.Cache
}

// NewCreditHandler 创建付费积分处理器
func NewCreditHandler(ldg *ledger.Ledger, cache *redis.Cache) *CreditHandler {
	return &CreditHandler{
		ledger: ldg,
		cache:  cache,
	}
}

// Add 充值接口
// @Summary 充值付费积分
// @Tags Credit
// @Accept json
// @Produce json
// @Success 200 {object} dto.AddCreditsResponse
// @Router /api/credit/add [post]
func (h *CreditHandler) Add(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AddCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "bad params"})
		return
	}
	if req.UserID == "" || req.Delta <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "bad params"})
		return
	}

	balance, err := h.ledger.AddCredits(ctx, req.UserID, req.Delta)
	if err != nil {
		logger.Error(ctx, "add credits failed", err, "user_id", req.UserID, "delta", req.Delta)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Server Error"})
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateUsage(ctx, req.UserID); err != nil {
			logger.Warn(ctx, "usage cache invalidation failed", "user_id", req.UserID, "error", err.Error())
		}
	}

	c.JSON(http.StatusOK, dto.AddCreditsResponse{OK: true, PaidCredits: balance})
}

// Get 余额查询接口，走 Redis read-through 缓存。
// 缓存不可用时直接回源数据库。
// @Summary 查询付费积分余额
// @Tags Credit
// @Accept json
// @Produce json
// @Success 200 {object} dto.GetCreditsResponse
// @Router /api/credit/get [post]
func (h *CreditHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GetCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "user_id is required"})
		return
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "user_id is required"})
		return
	}

	rec, err := h.loadSnapshot(c, req.UserID)
	if err != nil {
		logger.Error(ctx, "credit query failed", err, "user_id", req.UserID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "usage store unavailable"})
		return
	}

	paid := 0
	if rec != nil {
		paid = rec.PaidCredits
	}
	c.JSON(http.StatusOK, dto.GetCreditsResponse{PaidCredits: paid})
}

// loadSnapshot 先查缓存，未命中时回源并写缓存；缓存故障时降级直读
func (h *CreditHandler) loadSnapshot(c *gin.Context, userID string) (*entity.UsageRecord, error) {
	ctx := c.Request.Context()

	if h.cache == nil {
		return h.ledger.Snapshot(ctx, userID)
	}

	data, err := h.cache.GetOrLoadSafe(ctx, redis.UsageSnapshotKey(userID), snapshotTTL, func() (interface{}, error) {
		rec, err := h.ledger.Snapshot(ctx, userID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			rec = entity.NewUsageRecord(userID)
		}
		return rec, nil
	})
	if err != nil {
		logger.Warn(ctx, "snapshot cache degraded, reading store directly", "user_id", userID, "error", err.Error())
		return h.ledger.Snapshot(ctx, userID)
	}

	var rec entity.UsageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return h.ledger.Snapshot(ctx, userID)
	}
	return &rec, nil
}
