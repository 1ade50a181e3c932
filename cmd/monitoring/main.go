package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/propwatch/propwatch/internal/config"
	"github.com/propwatch/propwatch/internal/etl"
	"github.com/propwatch/propwatch/internal/handlers"
	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/internal/service"
	"github.com/propwatch/propwatch/pkg/cache"
	"github.com/propwatch/propwatch/pkg/database"
	"github.com/propwatch/propwatch/pkg/logger"
	"github.com/propwatch/propwatch/pkg/messaging"
)

func main() {
	log := logger.NewLogger("monitoring")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/monitoring.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := database.NewMongoClient(cfg.MongoURI, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(ctx)

	db := mongoClient.Database(cfg.DatabaseName)
	if err := setupIndexes(ctx, db); err != nil {
		log.WithError(err).Error("Failed to setup indexes")
	}

	redisCache, err := cache.NewRedisCache(cfg.RedisURL, "", 0, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer rabbitmq.Close()

	if err := rabbitmq.DeclareExchange(cfg.Engine.EventsExchange, "topic", true); err != nil {
		log.WithError(err).Fatal("Failed to declare events exchange")
	}
	if _, err := rabbitmq.DeclareQueue(cfg.Scheduler.JobQueue, true); err != nil {
		log.WithError(err).Fatal("Failed to declare job queue")
	}

	metricsRepo := repository.NewMetricsRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	reportRepo := repository.NewReportRepository(db)
	eventRepo := repository.NewEventRepository(db)
	listingRepo := repository.NewListingRepository(db)

	emailCfg := service.EmailConfig{
		SMTPHost:       cfg.Channels.SMTPHost,
		SMTPPort:       cfg.Channels.SMTPPort,
		SMTPUsername:   cfg.Channels.SMTPUsername,
		SMTPPassword:   cfg.Channels.SMTPPassword,
		FromEmail:      cfg.Channels.FromEmail,
		SendGridAPIKey: cfg.Channels.SendGridAPIKey,
	}

	dispatcher := service.NewDispatcher(channelRepo, log)
	dispatcher.RegisterTransport(models.ChannelEmail, service.NewEmailTransport(emailCfg, log))
	dispatcher.RegisterTransport(models.ChannelSMS, service.NewSMSTransport(service.TwilioConfig{
		AccountSID:  cfg.Channels.TwilioAccountSID,
		AuthToken:   cfg.Channels.TwilioAuthToken,
		PhoneNumber: cfg.Channels.TwilioPhoneNumber,
	}, log))
	dispatcher.RegisterTransport(models.ChannelSlack, service.NewSlackTransport(service.SlackConfig{
		WebhookURL: cfg.Channels.SlackWebhookURL,
		BotToken:   cfg.Channels.SlackBotToken,
	}, log))
	dispatcher.RegisterTransport(models.ChannelWebhook, service.NewWebhookTransport(log))

	if cfg.Channels.TelegramBotToken != "" {
		telegram, err := service.NewTelegramTransport(cfg.Channels.TelegramBotToken, log)
		if err != nil {
			log.WithError(err).Error("Failed to initialize telegram transport")
		} else {
			dispatcher.RegisterTransport(models.ChannelTelegram, telegram)
		}
	}

	alertService := service.NewAlertService(
		alertRepo, redisCache, rabbitmq, dispatcher, log,
		time.Duration(cfg.Engine.DedupWindowMinutes)*time.Minute,
		cfg.Engine.EventsExchange,
	)

	var source service.MetricSource = service.NewStoreMetricSource(metricsRepo)
	if cfg.Engine.PrometheusURL != "" {
		promSource, err := service.NewPrometheusMetricSource(cfg.Engine.PrometheusURL, log)
		if err != nil {
			log.WithError(err).Error("Failed to initialize Prometheus metric source")
		} else {
			source = service.NewFallbackMetricSource(source, promSource)
		}
	}

	engine := service.NewAlertEngine(
		ruleRepo, eventRepo, source, alertService, log,
		time.Duration(cfg.Engine.CheckIntervalSeconds)*time.Second,
	)

	scheduler := service.NewJobScheduler(
		scheduleRepo, rabbitmq, cfg.Scheduler.JobQueue, log,
		time.Duration(cfg.Scheduler.TickSeconds)*time.Second,
	)

	reportSender := service.NewEmailReportSender(emailCfg, log)
	generator := service.NewReportGenerator(
		alertRepo, metricsRepo, eventRepo, reportRepo, reportSender, log,
		time.Duration(cfg.Reports.TickSeconds)*time.Second,
	)

	runner := etl.NewRunner(rabbitmq, scheduleRepo, eventRepo, log,
		cfg.Scheduler.JobQueue, cfg.ETL.ConsumerTag)
	runner.Register(etl.NewListingsFetchPlugin(listingRepo, metricsRepo, cfg.ETL.ListingsFeedURL, log))
	runner.Register(etl.NewRetentionCleanupPlugin(metricsRepo, eventRepo, alertRepo, listingRepo, etl.RetentionPolicy{
		MetricsDays:  cfg.Retention.MetricsDays,
		EventsDays:   cfg.Retention.EventsDays,
		AlertsDays:   cfg.Retention.AlertsDays,
		ListingsDays: cfg.Retention.ListingsDays,
	}, log))

	if err := runner.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start ETL runner")
	}

	go engine.Run(ctx)
	go scheduler.Run(ctx)
	go generator.Run(ctx)

	if cfg.Sampler.Enabled {
		sampler := service.NewSystemSampler(metricsRepo, log,
			time.Duration(cfg.Sampler.IntervalSeconds)*time.Second)
		go sampler.Run(ctx)
	}

	handler := handlers.NewMonitoringHandler(
		alertService, engine, generator,
		ruleRepo, channelRepo, scheduleRepo, reportRepo, metricsRepo, eventRepo,
		log,
	)
	router := handlers.SetupRouter(handler, eventRepo, cfg.JWTSecret, log)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.HTTPPort)
		log.WithField("addr", addr).Info("Starting HTTP server")
		if err := router.Run(addr); err != nil {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down monitoring service...")
	cancel()
	time.Sleep(2 * time.Second)
}

func setupIndexes(ctx context.Context, db *mongo.Database) error {
	if err := database.CreateIndexes(ctx, db, "metric_samples", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "name", Value: 1},
			{Key: "component", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}); err != nil {
		return err
	}

	if err := database.CreateIndexes(ctx, db, "alerts", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "alert_type", Value: 1},
			{Key: "component", Value: 1},
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return err
	}

	if err := database.CreateIndexes(ctx, db, "alert_rules", []mongo.IndexModel{
		{Keys: bson.D{{Key: "enabled", Value: 1}}},
	}); err != nil {
		return err
	}

	if err := database.CreateIndexes(ctx, db, "events", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "type", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
	}); err != nil {
		return err
	}

	if err := database.CreateIndexes(ctx, db, "etl_schedules", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "enabled", Value: 1},
			{Key: "next_run", Value: 1},
		}},
	}); err != nil {
		return err
	}

	if err := database.CreateIndexes(ctx, db, "scheduled_reports", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "enabled", Value: 1},
			{Key: "next_run", Value: 1},
		}},
	}); err != nil {
		return err
	}

	if err := database.CreateIndexes(ctx, db, "notification_mappings", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "enabled", Value: 1},
			{Key: "alert_type", Value: 1},
		}},
	}); err != nil {
		return err
	}

	return database.CreateIndexes(ctx, db, "listing_snapshots", []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "source", Value: 1},
			{Key: "captured_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "captured_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(365 * 24 * 3600)},
	})
}
