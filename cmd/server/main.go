package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/internal/infrastructure/config"
	"flightwatch-service/internal/infrastructure/messaging"
	"flightwatch-service/internal/infrastructure/oauth"
	"flightwatch-service/internal/infrastructure/persistence"
	"flightwatch-service/internal/infrastructure/router"
	"flightwatch-service/internal/interface/opensky"
	"flightwatch-service/internal/interface/push"
	repo "flightwatch-service/internal/interface/repository"
	"flightwatch-service/internal/usecase"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting FlightWatch Service", "version", cfg.AppVersion)

	m := metrics.NewMetrics("flightwatch", prometheus.DefaultRegisterer)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB holds the event log regardless of the subscription store
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	eventStore := repo.NewMongoEventStore(db)

	subscriptions, closeStore, err := openSubscriptionStore(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("Failed to open subscription store", "driver", cfg.StoreDriver, "error", err)
	}

	// Set up OpenSky
	httpClient := opensky.NewHTTPClient(opensky.HTTPClientConfig{
		Timeout:      cfg.OpenSkyTimeout,
		RetryMax:     cfg.OpenSkyRetryMax,
		RetryWaitMin: cfg.OpenSkyRetryWaitMin,
		RetryWaitMax: cfg.OpenSkyRetryWaitMax,
	}, log)
	openSkyOAuth := oauth.NewOpenSkyOAuth(cfg.OpenSkyClientID, cfg.OpenSkyClientSecret, cfg.OpenSkyAuthURL, httpClient, log, m)
	provider := opensky.NewClient(httpClient, openSkyOAuth, cfg.OpenSkyBaseURL, log, m)

	// Notification gateway and integration event routing
	hub := push.NewHub(log, m, push.HubOptions{})

	eventRouter := router.NewEventRouter(log)
	eventRouter.Register(usecase.NewFlightDataUpdatedHandler(hub, log))
	eventRouter.Register(usecase.NewSubscriptionCreatedHandler(hub, log))

	// Set up message bus
	transport, consumer, closeBus, err := openBus(cfg, eventRouter, log)
	if err != nil {
		log.Fatal("Failed to connect to message bus", "driver", cfg.BusDriver, "error", err)
	}

	publisher := messaging.NewResilientPublisher(transport, messaging.PublisherPolicy{
		RetryLimit:             cfg.PublishRetryAttempts,
		RetryInitial:           cfg.PublishRetryInitial,
		RetryIncrement:         cfg.PublishRetryIncrement,
		BreakerTrackingPeriod:  cfg.BreakerTrackingPeriod,
		BreakerTripThreshold:   cfg.BreakerTripThreshold,
		BreakerActiveThreshold: cfg.BreakerActiveThreshold,
		BreakerResetInterval:   cfg.BreakerResetInterval,
		RateLimit:              cfg.PublishRateLimit,
	}, log, m)

	// Set up use cases
	monitoring := usecase.NewFlightMonitoringService(subscriptions, provider, eventStore, publisher, hub, log, m)
	dispatcher := usecase.NewUpdateDispatcher(monitoring, cfg.DispatcherWorkers, cfg.DispatcherQueueSize, log)
	subscriptionService := usecase.NewSubscriptionService(subscriptions, eventStore, publisher, dispatcher, log)
	scheduler := usecase.NewFlightUpdateScheduler(subscriptions, monitoring, usecase.SchedulerConfig{
		PollInterval:         cfg.PollInterval,
		StartupDelay:         cfg.StartupDelay,
		MaxConcurrency:       cfg.MaxConcurrency,
		ErrorBackoffStep:     cfg.ErrorBackoffStep,
		MaxErrorBackoff:      cfg.MaxErrorBackoff,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}, log, m)

	hub.OnDisconnect(func(connectionID string) {
		unsubCtx, unsubCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer unsubCancel()
		if err := subscriptionService.Unsubscribe(unsubCtx, connectionID, usecase.ReasonDisconnect); err != nil {
			log.Error("Error removing subscription on disconnect", "connectionId", connectionID, "error", err)
		}
	})

	// Streams do not survive a restart; drop what the last run left behind
	if cfg.PruneOnStart {
		if pruned, err := subscriptionService.PruneOrphans(ctx, hub.Connected); err != nil {
			log.Error("Failed to prune orphaned subscriptions", "error", err)
		} else if pruned > 0 {
			log.Info("Pruned orphaned subscriptions", "count", pruned)
		}
	}

	// Start background workers
	var wg sync.WaitGroup
	dispatcher.Start(ctx)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.Error("Message consumer stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// Set up HTTP server
	handler := router.NewHTTPRouter(router.HTTPHandlers{
		Subscriptions: subscriptionService,
		Flights:       monitoring,
		Stream:        hub,
		Metrics:       promhttp.Handler(),
		Logger:        log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Streams never finish on their own; close them before draining requests
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines
	wg.Wait()
	dispatcher.Wait()

	if err := consumer.Close(); err != nil {
		log.Error("Message consumer close error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		log.Error("Publisher close error", "error", err)
	}
	closeBus()
	closeStore()

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("FlightWatch Service stopped")
}

// openSubscriptionStore returns the repository selected by STORE_DRIVER and its cleanup
func openSubscriptionStore(ctx context.Context, cfg *config.Config, db *mongo.Database, log logger.Logger) (repository.SubscriptionRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		log.Info("Connecting to Redis")
		client, err := persistence.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return repo.NewRedisSubscriptionRepository(client), func() {
			if err := client.Close(); err != nil {
				log.Error("Redis close error", "error", err)
			}
		}, nil

	case config.StorePostgres:
		log.Info("Connecting to PostgreSQL")
		gormDB, err := persistence.NewPostgresDB(cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.AutoMigrateSubscriptions(gormDB); err != nil {
			return nil, nil, fmt.Errorf("migrate subscriptions: %w", err)
		}
		return repo.NewGormSubscriptionRepository(gormDB), func() {
			if sqlDB, err := gormDB.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil

	default:
		return repo.NewMongoSubscriptionRepository(db), func() {}, nil
	}
}

// openBus connects the transport and consumer selected by BUS_DRIVER
func openBus(cfg *config.Config, dispatcher messaging.Dispatcher, log logger.Logger) (messaging.Transport, messaging.Consumer, func(), error) {
	switch cfg.BusDriver {
	case config.BusKafka:
		log.Info("Connecting to Kafka", "brokers", cfg.KafkaBrokers)
		transport, err := messaging.NewKafkaTransport(cfg.KafkaBrokers, cfg.KafkaTopicPfx)
		if err != nil {
			return nil, nil, nil, err
		}
		consumer, err := messaging.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopicPfx, dispatcher, log)
		if err != nil {
			transport.Close()
			return nil, nil, nil, err
		}
		return transport, consumer, func() {}, nil

	default:
		log.Info("Connecting to NATS", "url", cfg.NATSURL)
		conn, err := messaging.ConnectNATS(cfg.NATSURL, "flightwatch-service", log)
		if err != nil {
			return nil, nil, nil, err
		}
		transport := messaging.NewNATSTransport(conn, cfg.NATSSubject)
		consumer := messaging.NewNATSConsumer(conn, cfg.NATSSubject, dispatcher, log)
		return transport, consumer, func() { drainNATS(conn, log) }, nil
	}
}

func drainNATS(conn *nats.Conn, log logger.Logger) {
	if err := conn.Drain(); err != nil {
		log.Error("NATS drain error", "error", err)
		conn.Close()
	}
}
