package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"experienceboard/internal/app"
	"experienceboard/internal/attachment"
	"experienceboard/internal/cache"
	"experienceboard/internal/config"
	"experienceboard/internal/identity"
	"experienceboard/internal/platform/database"
	"experienceboard/internal/platform/gcs"
	"experienceboard/internal/platform/logger"
	rabbitmqClient "experienceboard/internal/platform/rabbitmq"
	redisClient "experienceboard/internal/platform/redis"
	"experienceboard/internal/repository"
	"experienceboard/internal/session"
	"experienceboard/internal/worker"
)

const draftSweepInterval = time.Minute

type App struct {
	Config       *config.Config
	Log          *logger.Logger
	DB           *gorm.DB
	Redis        *redis.Client
	MQConn       *amqp.Connection
	Bucket       *gcs.Bucket
	Sessions     *session.Registry
	Drafts       *attachment.Drafts
	OrphanWorker *worker.OrphanPersistWorker
	Gate         identity.DomainGate

	AuthService       *app.AuthService
	ExperienceService *app.ExperienceService

	StartedAt time.Time
	stop      context.CancelFunc
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	a.DB = db
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.OrphanQueue)
	if err != nil {
		return err
	}

	a.Bucket, err = gcs.New(ctx, a.Log, StorageConfig(cfg))
	if err != nil {
		return err
	}

	// Background loops outlive the bootstrap ctx; Close stops them.
	bg, stop := context.WithCancel(context.Background())
	a.stop = stop

	a.Sessions = session.NewRegistry(a.Redis, cfg.Redis.AuthEventsChannel, a.Log)
	if err := a.Sessions.Start(bg); err != nil {
		return fmt.Errorf("start session registry failed: %w", err)
	}

	orphanRepo := repository.NewOrphanRepository(db)
	a.OrphanWorker = worker.NewOrphanPersistWorker(a.MQConn, orphanRepo, cfg.RabbitMQ.OrphanQueue, a.Log)
	if err := a.OrphanWorker.Start(bg); err != nil {
		return fmt.Errorf("start orphan worker failed: %w", err)
	}

	previews, err := attachment.NewTempFilePool(cfg.Drafts.SpoolDir)
	if err != nil {
		return err
	}
	deps := attachment.Deps{
		Objects:  a.Bucket,
		Metadata: repository.NewImageRepository(db),
		Orphans:  rabbitmqClient.NewOrphanPublisher(a.MQConn, cfg.RabbitMQ.OrphanQueue),
		Previews: previews,
		Log:      a.Log,
	}
	a.Drafts = attachment.NewDrafts(deps, time.Duration(cfg.Drafts.TTLMinutes)*time.Minute)
	go a.Drafts.Run(bg, draftSweepInterval)

	verifier, err := identity.NewGoogleVerifier(ctx, cfg.Auth.GoogleClientID)
	if err != nil {
		return fmt.Errorf("create id token verifier failed: %w", err)
	}
	a.Gate = identity.NewDomainGate(cfg.Auth.AllowedEmailDomain)

	a.AuthService = app.NewAuthService(
		repository.NewUserRepository(db),
		verifier,
		a.Gate,
		a.Sessions,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		a.Log,
	)
	a.ExperienceService = app.NewExperienceService(
		repository.NewExperienceRepository(db),
		cache.NewListCache(a.Redis, time.Duration(cfg.Redis.ListCacheTTLSeconds)*time.Second, 10*time.Second),
		cache.NewSubmitGuard(a.Redis, time.Duration(cfg.Redis.SubmitLockSeconds)*time.Second),
		a.Drafts,
		deps,
		a.Log,
	)
	return nil
}

// Close releases resources in reverse start order and reports every failure.
func (a *App) Close() error {
	var errs []error
	if a.stop != nil {
		a.stop()
	}
	if a.Drafts != nil {
		a.Drafts.Close()
	}
	if a.OrphanWorker != nil {
		a.OrphanWorker.Close()
	}
	if a.Sessions != nil {
		errs = append(errs, a.Sessions.Close())
	}
	if a.Bucket != nil {
		errs = append(errs, a.Bucket.Close())
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		errs = append(errs, a.MQConn.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// StorageConfig maps the [storage] section onto the bucket client config.
func StorageConfig(cfg *config.Config) gcs.Config {
	return gcs.Config{
		Bucket:          cfg.Storage.Bucket,
		Mode:            cfg.Storage.Mode,
		EmulatorHost:    cfg.Storage.EmulatorHost,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		CDNDomain:       cfg.Storage.CDNDomain,
		CredentialsFile: cfg.Storage.CredentialsFile,
	}
}
