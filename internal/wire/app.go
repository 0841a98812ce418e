// Package wire 提供手工装配的依赖注入入口
package wire

import (
	"context"
	"fmt"

	"manzai-script-api/internal/application/ledger"
	"manzai-script-api/internal/application/script"
	"manzai-script-api/internal/config"
	"manzai-script-api/internal/infrastructure/llm"
	"manzai-script-api/internal/infrastructure/persistence/postgres"
	"manzai-script-api/internal/infrastructure/persistence/redis"
	"manzai-script-api/internal/interfaces/http/handler"
	"manzai-script-api/internal/interfaces/http/router"
	"manzai-script-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// App 装配完成的应用
type App struct {
	Router      *router.Router
	PgClient    *postgres.Client
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter
	UsageRepo   *postgres.UsageRecordRepository
	Ledger       *ledger.Ledger
	ScriptEngine *script.Engine
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *gin.Engine {
	return a.Router.Engine()
}

// InitializeApp 初始化整个应用，返回清理函数。
// 启动时执行 user_usage 表迁移。
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pgClient.Close()
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}

	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn(ctx, "redis close failed", "error", err.Error())
		}
		if err := pgClient.Close(); err != nil {
			logger.Warn(ctx, "postgres close failed", "error", err.Error())
		}
	}

	usageRepo := postgres.NewUsageRecordRepository(pgClient)
	if err := usageRepo.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("migrate usage table: %w", err)
	}

	cache := redis.NewCache(redisClient)
	limiter := redis.NewRateLimiter(redisClient)

	ldg := ledger.New(usageRepo, cfg.Quota.FreeQuota)

	factory := llm.NewEinoFactory(cfg)
	provider := cfg.LLM.DefaultProvider
	modelName := ""
	if p, ok := cfg.LLM.Providers[provider]; ok {
		modelName = p.Model
	}
	engine := script.NewEngine(factory, provider, modelName, nil)

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient),
		Script: handler.NewScriptHandler(cfg, ldg, engine, cache),
		Credit: handler.NewCreditHandler(ldg, cache),
	}

	r := router.New(cfg, handlers, limiter)

	app := &App{
		Router:      r,
		PgClient:    pgClient,
		RedisClient: redisClient,
		Cache:       cache,
		RateLimiter: limiter,
		UsageRepo:   usageRepo,
		Ledger:       ldg,
		ScriptEngine: engine,
	}
	return app, cleanup, nil
}
