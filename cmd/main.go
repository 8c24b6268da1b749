package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/roktosheba/donor-service/internal/db"
	"github.com/roktosheba/donor-service/internal/handlers"
	"github.com/roktosheba/donor-service/internal/notify"
	"github.com/roktosheba/donor-service/internal/repository"
	"github.com/roktosheba/donor-service/internal/router"
	"github.com/roktosheba/donor-service/internal/router/config"
	"github.com/roktosheba/donor-service/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

	dbPool, err := db.InitDb(cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	defer dbPool.Close()

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	notifier := notify.NewRedisNotifier(redisClient)
	mailer := notify.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPFrom)

	requestRepo := repository.NewPostgresRequestRepository(dbPool)
	responseRepo := repository.NewPostgresResponseRepository(dbPool)
	userRepo := repository.NewPostgresUserRepository(dbPool)

	feedService := services.NewFeedService(requestRepo, userRepo)
	requestService := services.NewRequestService(requestRepo, userRepo)
	eligibilityService := services.NewEligibilityService(requestRepo, responseRepo, userRepo)
	responseService := services.NewResponseService(responseRepo, requestRepo, userRepo, notifier, mailer, logger)

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	feedHandler := handlers.NewFeedHandler(feedService, logger, timeout)
	requestHandler := handlers.NewRequestHandler(requestService, eligibilityService, logger, timeout)
	responseHandler := handlers.NewResponseHandler(responseService, logger, timeout)

	routes := router.InitRoutes(feedHandler, requestHandler, responseHandler)

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, routes); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
