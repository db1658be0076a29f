package app

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/delifood-checkout/internal/broker/kafka"
	"github.com/xenking/delifood-checkout/internal/broker/rabbitmq"
	"github.com/xenking/delifood-checkout/internal/domain/notification"
	"github.com/xenking/delifood-checkout/internal/redisx"
	"github.com/xenking/delifood-checkout/internal/storage/postgres"
)

// notifiers is the set of enabled notification sinks.
type notifiers struct {
	sinks   []notification.Sink
	closers []io.Closer
}

// Fanout returns a notifier delivering to every sink.
func (n *notifiers) Fanout() *notification.Fanout {
	return notification.NewFanout(n.sinks...)
}

// Close releases broker connections.
func (n *notifiers) Close() error {
	var err error
	for _, c := range n.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// newNotifiers connects the sinks enabled in cfg. rdb may be nil.
func newNotifiers(ctx context.Context, cfg NotifyConfig, pool *pgxpool.Pool, rdb *redis.Client) (*notifiers, error) {
	lg := zctx.From(ctx)
	n := &notifiers{}

	if cfg.Store {
		n.sinks = append(n.sinks, notification.Sink{Name: "postgres", Notifier: postgres.NewNotificationStore(pool)})
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kn := kafka.NewNotifier(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		n.sinks = append(n.sinks, notification.Sink{Name: "kafka", Notifier: kn})
		n.closers = append(n.closers, kn)
		lg.Info("Kafka notifications enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if cfg.RabbitMQ.URL != "" {
		rn, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, multierr.Append(errors.Wrap(err, "dial rabbitmq"), n.Close())
		}
		n.sinks = append(n.sinks, notification.Sink{Name: "rabbitmq", Notifier: rn})
		n.closers = append(n.closers, rn)
		lg.Info("RabbitMQ notifications enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}
	if cfg.Redis {
		if rdb == nil {
			return nil, multierr.Append(errors.New("redis notifications need a redis address"), n.Close())
		}
		n.sinks = append(n.sinks, notification.Sink{Name: "redis", Notifier: redisx.NewNotifier(rdb)})
	}

	if len(n.sinks) == 0 {
		lg.Warn("No notification sinks enabled")
	}
	return n, nil
}
