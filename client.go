package edms

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jinkaiteo/edms/internal/cache"
	"github.com/jinkaiteo/edms/internal/compress"
	"github.com/jinkaiteo/edms/internal/config"
	"github.com/jinkaiteo/edms/internal/events"
	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/jinkaiteo/edms/internal/service"
	"github.com/jinkaiteo/edms/internal/store"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Client bundles the services of one EDMS deployment.
type Client struct {
	Store        store.Store
	Users        *identity.StaticProvider
	Identity     identity.Provider
	Capabilities cache.CapabilityCache // nil without redis
	Emitter      *events.Emitter
	// Notifications is the in-process bus subscriber, nil when notifications
	// go to kafka.
	Notifications message.Subscriber

	Documents    *service.DocumentService
	Workflow     *service.WorkflowService
	Dependencies *service.DependencyService
	Sweeper      *service.Sweeper

	db    *gorm.DB
	redis *redis.Client
}

// Open connects to the configured database and builds a Client on it.
func Open(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := config.OpenDb(cfg)
	if err != nil {
		return nil, err
	}

	c, err := New(ctx, db, cfg)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return c, nil
}

// New builds a Client on an open database. The schema is migrated first.
func New(ctx context.Context, db *gorm.DB, cfg *config.Config, opts ...service.Option) (*Client, error) {
	c := &Client{
		db:    db,
		Store: store.NewGormStore(db),
		Users: identity.NewStaticProvider(cfg.Users...),
	}
	if err := c.Store.Migrate(); err != nil {
		return nil, err
	}

	c.Identity = c.Users
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedis(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		c.redis = rdb
		c.Capabilities = cache.NewRedisCapabilityCache(rdb, cfg.Redis.CapabilityTTL)
		cached := cache.NewCachedProvider(c.Users, c.Capabilities)
		c.Users.OnChange(func(userID string) {
			if err := cached.Invalidate(context.Background(), userID); err != nil {
				logrus.WithError(err).WithField("user", userID).Warn("capability cache invalidation failed")
			}
		})
		c.Identity = cached
	}

	sinks, err := c.sinks(cfg)
	if err != nil {
		if c.redis != nil {
			_ = c.redis.Close()
		}
		return nil, err
	}
	c.Emitter = events.NewEmitter(events.Options{
		QueueSize:       cfg.Emitter.QueueSize,
		MaxRetries:      cfg.Emitter.MaxRetries,
		InitialInterval: cfg.Emitter.InitialInterval,
		MaxInterval:     cfg.Emitter.MaxInterval,
		DeliveryTimeout: cfg.Emitter.DeliveryTimeout,
	}, sinks...)

	opts = append([]service.Option{service.WithEmitter(c.Emitter)}, opts...)
	c.Documents = service.NewDocumentService(c.Store, c.Identity, opts...)
	c.Workflow = service.NewWorkflowService(c.Store, c.Identity, opts...)
	c.Dependencies = service.NewDependencyService(c.Store, c.Identity)
	c.Sweeper = service.NewSweeper(c.Store, c.Workflow, opts...)

	return c, nil
}

func (c *Client) sinks(cfg *config.Config) ([]events.Sink, error) {
	sinks := []events.Sink{events.NewLogSink(logrus.WithField("sink", "log"))}

	if len(cfg.Kafka.Brokers) > 0 {
		codec, err := compress.New(cfg.Kafka.Compression)
		if err != nil {
			return nil, err
		}
		audit, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, codec)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, audit)
	}

	if cfg.Notifications.Enabled {
		logger := events.LoggerAdapter(logrus.WithField("component", "notifications"))
		var publisher message.Publisher
		switch cfg.Notifications.Publisher {
		case "kafka":
			p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, logger)
			if err != nil {
				closeSinks(sinks)
				return nil, err
			}
			publisher = p
		default:
			pubSub := events.NewGoChannel(logger)
			publisher = pubSub
			c.Notifications = pubSub
		}
		sinks = append(sinks, events.NewWatermillSink(publisher, cfg.Notifications.Topic))
	}

	return sinks, nil
}

func closeSinks(sinks []events.Sink) {
	for _, s := range sinks {
		_ = s.Close()
	}
}

// Close drains pending events and releases every connection.
func (c *Client) Close() error {
	var errs []error
	if c.Emitter != nil {
		if err := c.Emitter.Close(); err != nil && !errors.Is(err, events.ErrEmitterClosed) {
			errs = append(errs, err)
		}
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if sqlDB, err := c.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
