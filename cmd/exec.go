package cmd

import (
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"gate-service/config"
	"gate-service/handlers"
	_ "gate-service/migrations"
	"gate-service/monitoring"
	"gate-service/repository"
	"gate-service/security"
	"gate-service/services"
	"gate-service/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Initialize services
	monitor := monitoring.NewMonitor()
	repo := repository.NewPocketBaseRepository(app, cfg.AssetPrefixThreshold)
	challenges := services.NewChallengeService(cfg.ChallengeSecret, cfg.ChallengeTTL)
	signatures := services.NewSignatureVerifier()
	oracle := services.NewSolanaOracle(cfg, redisClient, monitor)
	gateService := services.NewGateService(repo, challenges, signatures, oracle, pn, monitor, cfg)

	// Initialize handlers
	gateHandler := handlers.NewGateHandler(app, gateService)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.GateRateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Register routes
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		// Gate verification endpoints
		gate := se.Router.Group("/api/gate")
		gate.BindFunc(rateLimiter.GateRateLimit())
		gate.POST("/scan", gateHandler.Scan)
		gate.POST("/verify", gateHandler.Verify)

		// Prometheus metrics
		if cfg.EnableMetrics {
			se.Router.GET("/metrics", func(e *core.RequestEvent) error {
				promhttp.Handler().ServeHTTP(e.Response, e.Request)
				return nil
			})
		}

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Gate routes registered")

		return se.Next()
	})

	// Start server
	return app.Start()
}
