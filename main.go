package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"agendo/config"
	"agendo/cron"
	"agendo/database"
	appointmentRepoPkg "agendo/database/repository/appointment"
	credentialRepoPkg "agendo/database/repository/credential"
	instanceRepoPkg "agendo/database/repository/instance"
	"agendo/handlers"
	"agendo/models"
	"agendo/routes"
	"agendo/services/availability"
	"agendo/services/booking"
	"agendo/services/calendar"
	"agendo/services/conversation"
	"agendo/services/credentials"
	"agendo/services/gateway"
	"agendo/services/intelligence"
	"agendo/services/messaging"
	"agendo/services/tasks"
	"agendo/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitStateCache()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	instRepo := instanceRepoPkg.NewMongoInstanceRepo()
	apptRepo := appointmentRepoPkg.NewMongoAppointmentRepo()
	credRepo := credentialRepoPkg.NewMongoCredentialRepo()

	// services.
	credStore := credentials.NewStore(credRepo, credentials.NewOAuthConfig(
		config.AppConfig.GoogleClientID,
		config.AppConfig.GoogleClientSecret,
		config.AppConfig.GoogleRedirectURI,
	))
	calClient := calendar.NewClient(credStore)
	availEngine := availability.NewEngine(calClient)
	sender := messaging.NewEvolutionClient(
		config.AppConfig.EvolutionAPIURL,
		config.AppConfig.EvolutionAPIKey,
	)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer asynqClient.Close()

	committer := booking.NewCommitter(apptRepo, calClient, calClient,
		tasks.NewScheduler(asynqClient), 24*time.Hour)

	var classifier intelligence.Classifier = intelligence.KeywordClassifier{}
	if config.AppConfig.GeminiAPIKey != "" {
		gem, err := intelligence.NewGeminiClassifier(context.Background(), config.AppConfig.GeminiAPIKey)
		if err != nil {
			logger.Sugar().Warnf("main: gemini classifier unavailable, using keyword fallback: %v", err)
		} else {
			classifier = gem
		}
	}

	tracker := conversation.NewTracker(
		conversation.NewRedisStateStore(utils.GetStateCacheClient(), config.ConversationTTL()),
		config.ConversationTTL(),
	)

	processor := &conversation.Processor{
		Instances:        instRepo,
		Tracker:          tracker,
		Classifier:       classifier,
		Availability:     availEngine,
		Booking:          committer,
		Messenger:        sender,
		SlotDuration:     config.SlotDuration(),
		CallTimeout:      config.CallTimeout(),
		AutoReplyDefault: config.AppConfig.AutoReplyEnabled,
		Defaults: models.AgentConfig{
			WorkingHoursStart: config.AppConfig.WorkingHoursStart,
			WorkingHoursEnd:   config.AppConfig.WorkingHoursEnd,
		},
	}

	dispatcher := gateway.NewDispatcher(processor.Handle,
		config.AppConfig.LaneBufferSize, 5*time.Minute)
	gatewaySvc := gateway.NewService(
		config.AppConfig.WebhookSecret,
		gateway.NewRedisDedup(utils.GetCacheClient(), config.DedupWindow()),
		dispatcher,
		config.AppConfig.DefaultSMSInstance,
	)

	handlerBundle := &handlers.HandlerBundle{
		Gateway:           gatewaySvc,
		Booking:           committer,
		Availability:      availEngine,
		Credentials:       credStore,
		InstanceRepo:      instRepo,
		WorkingHoursStart: config.AppConfig.WorkingHoursStart,
		WorkingHoursEnd:   config.AppConfig.WorkingHoursEnd,
		SlotDuration:      config.SlotDuration(),
	}

	routes.RegisterRoutes(router, handlerBundle)

	// Background reminder worker and health monitor.
	cron.InitReminderWorker(sender)
	utils.StartHealthMonitor(
		[]*redis.Client{utils.GetCacheClient(), utils.GetStateCacheClient()},
		database.MongoClient,
	)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	// Stop taking webhooks first, then drain the in-flight lanes.
	if err := dispatcher.Shutdown(ctx); err != nil {
		logger.Sugar().Warnf("main: dispatcher drain incomplete: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
