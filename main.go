package main

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saichennu440/craft-store/config"
	"github.com/saichennu440/craft-store/controllers"
	"github.com/saichennu440/craft-store/database"
	"github.com/saichennu440/craft-store/gateway"
	"github.com/saichennu440/craft-store/kafka"
	"github.com/saichennu440/craft-store/models"
	"github.com/saichennu440/craft-store/repository"
	"github.com/saichennu440/craft-store/routes"
	"github.com/saichennu440/craft-store/services"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if err := database.Connect(cfg, logger, &models.Order{}, &models.OrderItem{}, &models.Payment{}); err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	paymentRepo := repository.NewGormPaymentRepo(database.DB)
	orderRepo := repository.NewGormOrderRepo(database.DB)

	var authEndpoints []string
	if cfg.GatewayAuthURL != "" {
		authEndpoints = append(authEndpoints, cfg.GatewayAuthURL)
	}
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.GatewayBaseURL,
		LegacyBaseURL: cfg.GatewayLegacyBaseURL,
		MerchantID:    cfg.GatewayMerchantID,
		SaltKey:       cfg.GatewaySecret,
		SaltIndex:     cfg.GatewaySaltIndex,
		ClientID:      cfg.GatewayClientID,
		ClientSecret:  cfg.GatewayClientSecret,
		ClientVersion: cfg.GatewayClientVersion,
		AuthEndpoints: authEndpoints,
	}, gateway.NewTokenCache(), logger)

	var events services.EventPublisher
	if cfg.KafkaBrokers != "" {
		producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentEventsTopic, logger)
		defer producer.Close()
		events = producer
	}

	sandbox := !cfg.Production()
	if sandbox {
		logger.Info("running in sandbox mode, gateway calls are bypassed")
	}

	initiation := services.NewInitiationService(
		paymentRepo, orderRepo, gatewayClient,
		cfg.GatewayProvider, sandbox, cfg.PublicBaseURL, logger,
	)
	verification := services.NewVerificationService(
		paymentRepo, orderRepo, gatewayClient, events,
		sandbox, cfg.VerifyMaxAttempts, cfg.VerifyBaseDelay, logger,
	)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	r := gin.New()
	r.Use(gin.Recovery())

	pc := &controllers.PaymentController{
		Initiation:   initiation,
		Verification: verification,
		Payments:     paymentRepo,
		Orders:       orderRepo,
		SaltKey:      cfg.GatewaySecret,
		Sandbox:      sandbox,
		Logger:       logger,
	}
	routes.RegisterPaymentRoutes(r, pc, redisClient)

	logger.Info("payment service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
