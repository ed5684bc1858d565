// Package wire provides dependency injection for the garde application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"database/sql"
	"log"
	"sync"

	"go.uber.org/zap"

	"github.com/example/garde/internal/adapters/events"
	"github.com/example/garde/internal/adapters/sqlite"
	"github.com/example/garde/internal/app"
	"github.com/example/garde/internal/config"
	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/db"
	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/metrics"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/ports/secondary"
)

var (
	cfg = config.Default()

	database  *sql.DB
	logger    *zap.Logger
	recorder  *metrics.Recorder
	publisher secondary.EventPublisher
	directory secondary.Directory
	holidays  calendar.HolidayTable

	rosterService         primary.RosterService
	unavailabilityService primary.UnavailabilityService
	escalationService     primary.EscalationService
	auditService          primary.AuditService

	once sync.Once
)

// Configure sets the configuration used when services are first built.
// Calls after the first service access have no effect.
func Configure(c *config.Config) {
	if c != nil {
		cfg = c
	}
}

// Config returns the active configuration.
func Config() *config.Config {
	return cfg
}

// RosterService returns the singleton RosterService instance.
func RosterService() primary.RosterService {
	once.Do(initServices)
	return rosterService
}

// UnavailabilityService returns the singleton UnavailabilityService instance.
func UnavailabilityService() primary.UnavailabilityService {
	once.Do(initServices)
	return unavailabilityService
}

// EscalationService returns the singleton EscalationService instance.
func EscalationService() primary.EscalationService {
	once.Do(initServices)
	return escalationService
}

// AuditService returns the singleton AuditService instance.
func AuditService() primary.AuditService {
	once.Do(initServices)
	return auditService
}

// Directory returns the org directory used to resolve the calling actor.
func Directory() secondary.Directory {
	once.Do(initServices)
	return directory
}

// DB returns the shared database connection.
func DB() *sql.DB {
	once.Do(initServices)
	return database
}

// Holidays returns the holiday table in use.
func Holidays() calendar.HolidayTable {
	once.Do(initServices)
	return holidays
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	once.Do(initServices)
	return logger
}

// Metrics returns the process metrics recorder.
func Metrics() *metrics.Recorder {
	once.Do(initServices)
	return recorder
}

// EscalationWatcher returns a new watcher on the configured schedule.
func EscalationWatcher() *app.EscalationWatcher {
	once.Do(initServices)
	return app.NewEscalationWatcher(escalationService, cfg.Watch.Schedule, logger, recorder)
}

// Close flushes the logger and releases the transport and the database.
func Close() {
	if logger != nil {
		_ = logger.Sync()
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	if database != nil {
		_ = database.Close()
	}
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	var err error

	logger, err = logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	db.MigrationLogger = func(format string, args ...any) {
		logger.Sugar().Infof(format, args...)
	}

	database, err = db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	holidays, err = loadHolidays(cfg.HolidaysFile)
	if err != nil {
		logger.Fatal("failed to load holidays", zap.String("path", cfg.HolidaysFile), zap.Error(err))
	}

	recorder = metrics.New()
	publisher, err = events.New(context.Background(), events.Options{
		Transport:     cfg.Events.Transport,
		RedisAddr:     cfg.Events.RedisAddr,
		NATSURL:       cfg.Events.NATSURL,
		SubjectPrefix: cfg.Events.SubjectPrefix,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize event transport", zap.String("transport", cfg.Events.Transport), zap.Error(err))
	}

	// Create repository adapters (secondary ports) - sqlite adapters with injected DB
	rosterRepo := sqlite.NewRosterRepository(database)
	unavRepo := sqlite.NewUnavailabilityRepository(database)
	escalationRepo := sqlite.NewEscalationRepository(database)
	auditRepo := sqlite.NewAuditLogRepository(database)
	directory = sqlite.NewDirectoryRepository(database)

	executor := app.NewEffectExecutor(publisher, logger, recorder)

	// Create services (primary ports implementation)
	rosterService = app.NewRosterService(rosterRepo, unavRepo, directory, auditRepo, executor, app.RosterServiceOptions{
		Holidays:     holidays,
		LookbackDays: cfg.LoadLookbackDays,
		Logger:       logger,
		Metrics:      recorder,
	})
	unavailabilityService = app.NewUnavailabilityService(unavRepo, rosterRepo, directory, auditRepo, executor, logger)
	escalationService = app.NewEscalationService(escalationRepo, rosterRepo, directory, auditRepo, executor, app.EscalationServiceOptions{
		Config:  cfg.EscalationDefaults(),
		Logger:  logger,
		Metrics: recorder,
	})
	auditService = app.NewAuditService(auditRepo, escalationRepo)
}

func loadHolidays(path string) (calendar.HolidayTable, error) {
	if path == "" {
		return calendar.DefaultHolidays()
	}
	return calendar.LoadHolidays(path)
}
