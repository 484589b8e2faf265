package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartsaver/config"
	"cartsaver/internal/activity"
	"cartsaver/internal/api"
	"cartsaver/internal/auth"
	"cartsaver/internal/broker"
	"cartsaver/internal/models"
	"cartsaver/internal/redisclient"
	"cartsaver/internal/service"
	"cartsaver/internal/shopify"
	"cartsaver/internal/store"
	"cartsaver/internal/util"
	"cartsaver/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting cartsaver")

	tp, err := util.InitTracer("cartsaver", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicActivity)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	recorder := activity.NewKafkaRecorder(producer)

	newSource := func(shop *models.Shop) service.CheckoutSource {
		return shopify.NewClient(shop.Domain, shop.AccessToken, cfg.Shopify.APIVersion)
	}
	newPlatform := func(shop *models.Shop) service.PlatformClient {
		return shopify.NewClient(shop.Domain, shop.AccessToken, cfg.Shopify.APIVersion)
	}

	dedupTTL := time.Duration(cfg.Business.DedupTTLHours) * time.Hour
	statsTTL := time.Duration(cfg.Business.StatsCacheSeconds) * time.Second

	webhookService := service.NewWebhookService(db, db, redisClient, dedupTTL, recorder)
	syncService := service.NewSyncService(db, newSource, redisClient, recorder)
	cartService := service.NewCartService(db, redisClient, statsTTL)
	shopService := service.NewShopService(db, newPlatform, cfg.Shopify.AppURL, recorder)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	activityConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicActivity, cfg.Kafka.ConsumerGroup)
	activityWorker := worker.NewActivityWorker(activityConsumer, db)
	go func() {
		if err := activityWorker.Start(workerCtx); err != nil {
			log.Printf("Activity worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(
		cartService,
		syncService,
		shopService,
		webhookService,
		db,
		jwtService,
		cfg.Shopify.APISecret,
		cfg.Business.SyncLimit,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	activityWorker.Stop()

	log.Println("Server exited")
}
