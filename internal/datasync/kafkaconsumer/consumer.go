// Package kafkaconsumer applies dataset events from Kafka to the Redis table
// store.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	obs "github.com/mohammed-shakir/urbansphere/internal/core/observability"
	"github.com/mohammed-shakir/urbansphere/internal/dataset/redistable"
	"github.com/mohammed-shakir/urbansphere/internal/datasync"
	mylog "github.com/mohammed-shakir/urbansphere/internal/logger"
)

// TableWriter is the part of the table store the consumer writes to.
type TableWriter interface {
	Put(ctx context.Context, table string, doc []byte, seq uint64) error
	Delete(ctx context.Context, table string, seq uint64) error
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  TableWriter
	seen   *lru.Cache[string, uint64]
	zlog   *zerolog.Logger
}

func New(cfg Config, logger *slog.Logger, store TableWriter) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		return nil, errors.New("kafkaconsumer: missing table store")
	}
	size := cfg.DedupeSize
	if size <= 0 {
		size = 4096
	}
	seen, err := lru.New[string, uint64](size)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	zl := zerolog.Nop()
	return &Consumer{cfg: cfg, logger: logger, store: store, seen: seen, zlog: &zl}, nil
}

// Start joins the consumer group and applies events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	base := mylog.WithComponent(context.Background(), "datasync")
	zl := mylog.Build(mylog.Config{Level: "info", Component: "datasync"}, nil)
	c.zlog = mylog.FromContext(base, &zl)

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("dataset sync consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dataset sync consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single message. Malformed and stale events are
// dropped; only store failures are returned so the message is redelivered.
// The LRU only short-circuits events already known to be stale; the store's
// sequence watermark is authoritative.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := datasync.Decode(msg.Value)
	if err != nil {
		obs.IncDatasyncError("decode")
		obs.ObserveDatasetEvent(ev.Op, "invalid")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "decode").
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("dropping dataset event")
		return nil
	}

	key := ev.Key()
	if last, ok := c.seen.Get(key); ok && ev.Seq <= last {
		obs.ObserveDatasetEvent(ev.Op, "stale")
		c.logger.Debug("stale dataset event", "key", key, "seq", ev.Seq, "last", last)
		return nil
	}

	switch ev.Op {
	case datasync.OpPut:
		err = c.store.Put(ctx, ev.Table, ev.Data, ev.Seq)
	case datasync.OpDelete:
		err = c.store.Delete(ctx, ev.Table, ev.Seq)
	}
	if errors.Is(err, redistable.ErrStale) {
		obs.ObserveDatasetEvent(ev.Op, "stale")
		c.logger.Debug("stale dataset event", "key", key, "seq", ev.Seq)
		return nil
	}
	if errors.Is(err, redistable.ErrInvalidDocument) {
		obs.IncDatasyncError("document")
		obs.ObserveDatasetEvent(ev.Op, "invalid")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "document").
			Str("table", ev.Table).
			Uint64("seq", ev.Seq).
			Msg("dropping dataset event")
		return nil
	}
	if err != nil {
		obs.IncDatasyncError("store")
		obs.ObserveDatasetEvent(ev.Op, "error")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "store").
			Str("op", ev.Op).
			Str("table", ev.Table).
			Uint64("seq", ev.Seq).
			Msg("dataset event failed")
		return fmt.Errorf("apply %s %s: %w", ev.Op, key, err)
	}

	c.seen.Add(key, ev.Seq)
	obs.ObserveDatasetEvent(ev.Op, "applied")
	c.logger.Debug("dataset event applied", "op", ev.Op, "key", key, "seq", ev.Seq)
	return nil
}
