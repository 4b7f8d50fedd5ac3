// Package app wires configuration, storage, services and HTTP handlers into
// a runnable server.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"exercisetracker/internal/config"
	"exercisetracker/internal/handlers"
	"exercisetracker/internal/repositories"
	"exercisetracker/internal/services"
	"exercisetracker/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

// App is a configured server together with the resources it owns.
type App struct {
	Server  *fiber.App
	log     *logrus.Logger
	closers []func() error
}

// New opens the configured store and event publisher and builds the server.
// Close releases everything New opened.
func New(ctx context.Context, cfg config.Config, log *logrus.Logger) (*App, error) {
	a := &App{log: log}

	repo, closeRepo, err := OpenRepository(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeRepo)

	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		a.closers = append(a.closers, mqClient.Close)
		events = mqClient
		log.Info("publishing events to RabbitMQ")
	}

	service := services.NewUserService(repo, events, log)

	accessLog := log.Writer()
	a.closers = append(a.closers, accessLog.Close)
	a.Server = NewServer(cfg, log, accessLog, service)
	return a, nil
}

// Close shuts down owned resources in reverse order of acquisition.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("failed to release resource")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.closers = nil
	return firstErr
}

// NewServer builds the Fiber app: middleware, API routes, health check and
// the static front-end.
func NewServer(cfg config.Config, log *logrus.Logger, accessLog io.Writer, service *services.UserService) *fiber.App {
	server := fiber.New(fiber.Config{
		Immutable:    true,
		ErrorHandler: handlers.ErrorHandler(log),
	})

	server.Use(recover.New())
	server.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	server.Use(logger.New(logger.Config{
		Format: "${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		Output: accessLog,
	}))
	server.Use(cors.New())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := server.Group("/api")
	handlers.NewUserHandler(service, log).RegisterRoutes(api)

	server.Get("/", func(c *fiber.Ctx) error {
		return c.SendFile(filepath.Join(cfg.ViewsDir, "index.html"))
	})
	server.Static("/", cfg.PublicDir)

	return server
}

// OpenRepository connects to the store selected by cfg.DatabaseDriver and
// returns it with a function that closes the connection.
func OpenRepository(ctx context.Context, cfg config.Config, log *logrus.Logger) (repositories.UserRepository, func() error, error) {
	if cfg.DatabaseDriver == config.DriverMongoDB {
		return openMongo(ctx, cfg, log)
	}

	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := OpenGORM(dialector, log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.DatabaseDriver == config.DriverSQLite {
		// One connection keeps :memory: databases intact and serializes writers.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repositories.AutoMigrate(db); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	log.WithField("driver", cfg.DatabaseDriver).Info("connected to database")
	return repositories.NewGORMUserRepository(db), sqlDB.Close, nil
}

// OpenGORM opens a GORM handle that reports duplicate keys as
// gorm.ErrDuplicatedKey and logs slow or failed statements through log.
func OpenGORM(dialector gorm.Dialector, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func openMongo(ctx context.Context, cfg config.Config, log *logrus.Logger) (repositories.UserRepository, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := repositories.ConnectMongo(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("database", cfg.DatabaseName).Info("connected to MongoDB")

	repo := repositories.NewMongoUserRepository(ctx, client.Database(cfg.DatabaseName), log)
	closeFn := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		return client.Disconnect(ctx)
	}
	return repo, closeFn, nil
}
