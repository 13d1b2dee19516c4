package bootstrap

import (
	"context"
	"fmt"
	"log"

	"euno-analytics-be/internal/config"
	"euno-analytics-be/internal/controller"
	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/internal/repository/memory"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/internal/service"
	"euno-analytics-be/pkg/analytics"
	"euno-analytics-be/pkg/chart"
	"euno-analytics-be/pkg/conversation"
	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/events"
	"euno-analytics-be/pkg/llm/factory"
	"euno-analytics-be/pkg/reasoning"
	"euno-analytics-be/pkg/tier"

	pktNats "euno-analytics-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AnalyticsController controller.IAnalyticsController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	reasoningLogger := logger.NewIsolatedLogger(cfg.App.ReasoningLogPath)
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	var relay events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			relay = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// 3. Shared state: usage counters and turn tokens
	var rdb *redis.Client
	if cfg.Engine.UsageStore == "redis" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	var usageStore tier.UsageStore
	var turnGate conversation.TurnGate
	if rdb != nil {
		usageStore = tier.NewRedisUsageStore(rdb)
		turnGate = conversation.NewRedisTurnGate(rdb, cfg.Engine.TurnLockTTL)
		log.Printf("[INFO] Usage store: REDIS")
	} else {
		usageStore = tier.NewMemoryUsageStore()
		turnGate = conversation.NewMemoryTurnGate(cfg.Engine.TurnLockTTL)
		log.Printf("[INFO] Usage store: MEMORY (single replica only)")
	}

	policies, err := tier.LoadPolicies(cfg.Engine.TierPolicyFile)
	if err != nil {
		return nil, err
	}
	tierEngine := tier.NewEngine(policies, usageStore, sysLogger)

	// 4. Reasoning
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.BaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	reasonerCfg := reasoning.DefaultConfig()
	reasonerCfg.Timeout = cfg.Ai.Timeout
	reasonerCfg.MaxRetries = cfg.Ai.MaxRetries
	reasoner := reasoning.NewLLMReasoner(llmProvider, reasonerCfg, reasoningLogger)

	// 5. Services
	publisher := events.NewChannelPublisher(pubSub)
	dataSources := service.NewDataSourceProvider(uowFactory, memory.NewDataSourceCache(cfg.Engine.ProfileCacheTTL))
	conversationService := service.NewConversationService(uowFactory, turnGate, publisher, sysLogger)
	analyticsService := service.NewAnalyticsService(
		uowFactory,
		dataSources,
		tierEngine,
		turnGate,
		correlation.NewResolver(correlation.Options{
			MinOverlap: cfg.Engine.CorrelationMinOverlap,
			SampleSize: cfg.Engine.CorrelationSampleSize,
		}),
		analytics.NewOrchestrator(reasoner, policies, sysLogger),
		chart.NewRecommender(reasoner, sysLogger),
		publisher,
		sysLogger,
		service.AnalyticsOptions{
			HistoryWindow: cfg.Engine.HistoryWindow,
			SampleRows:    cfg.Engine.SampleRows,
		},
	)

	c.ConsumerService = service.NewConsumerService(pubSub, events.Topic, relay, sysLogger)

	// 6. Controllers
	c.AnalyticsController = controller.NewAnalyticsController(
		analyticsService,
		conversationService,
		dataSources,
		cfg.Auth.JWTSecret,
	)
	return c, nil
}

// Close releases brokers and connections in reverse order
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
