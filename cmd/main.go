package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"permission_service/internal/classifier"
	"permission_service/internal/config"
	"permission_service/internal/events"
	"permission_service/internal/handlers"
	"permission_service/internal/repository"
	"permission_service/internal/service"
	"permission_service/pkg/discovery"

	"github.com/gofiber/fiber/v3"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/evolvia", "log", "permission_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func rabbitURI() string {
	cfg := config.ServiceConfig
	if cfg.RabbitMQUSer == "" || cfg.RabbitMQPort == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@rabbitmq:%s/", cfg.RabbitMQUSer, cfg.RabbitMQPassword, cfg.RabbitMQPort)
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.ServiceConfig

	publisher, err := events.NewAuditPublisher(rabbitURI())
	if err != nil {
		log.Printf("Warning: event publisher unavailable, continuing without it: %v", err)
		publisher = nil
	}

	managerConfig := service.DefaultManagerConfig()
	managerConfig.CacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	managerConfig.AuditRetention = time.Duration(cfg.AuditRetentionDays) * 24 * time.Hour
	managerConfig.BotOwners = cfg.BotOwners
	managerConfig.BotAdmins = cfg.BotAdmins

	classifierConfig := classifier.DefaultClassifierConfig()
	classifierConfig.OwnerScoreThreshold = cfg.OwnerScoreThreshold
	classifierConfig.NameConfidenceThreshold = cfg.NameConfidenceThreshold
	managerConfig.Classifier = classifierConfig

	var managerPublisher service.EventPublisher
	if publisher != nil {
		managerPublisher = publisher
	}
	manager := service.NewPermissionManager(managerConfig, repository.Repositories_instance.Store, managerPublisher)
	manager.RegisterDefaultNodes()

	consumer, err := events.NewGuildEventConsumer(rabbitURI(), manager)
	if err != nil {
		log.Printf("Warning: guild event consumer unavailable: %v", err)
		consumer = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Warning: failed to start guild event consumer: %v", err)
		}
	}

	// Periodic sweep of expired overrides and aged-out audit entries.
	cleanupInterval := time.Duration(cfg.CleanupIntervalMins) * time.Minute
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := manager.CleanupExpired(ctx)
				if removed > 0 {
					log.Printf("Cleanup sweep removed %d expired overrides", removed)
				}
			}
		}
	}()

	jwtService := service.NewJWTService()

	app := fiber.New(fiber.Config{})

	handlers.NewPermissionHandler(manager).RegisterRoutes(app)
	handlers.NewGuildAdminHandler(manager, jwtService).RegisterRoutes(app)
	handlers.NewTokenHandler(manager, jwtService).RegisterRoutes(app)

	if err := discovery.ServiceDiscovery.Register(); err != nil {
		log.Printf("Warning: Consul registration failed: %v", err)
	}

	shutdownChan := make(chan os.Signal, 1)
	doneChan := make(chan bool, 1)

	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
		doneChan <- true
	}()

	<-shutdownChan
	log.Println("Shutting down server...")

	if err := discovery.ServiceDiscovery.Deregister(); err != nil {
		log.Printf("Error deregistering from Consul: %v", err)
	}
	if consumer != nil {
		consumer.Close()
	}
	if publisher != nil {
		publisher.Close()
	}
	cancel()

	if err := app.Shutdown(); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	<-doneChan
	log.Println("Server exited, goodbye!")
}
