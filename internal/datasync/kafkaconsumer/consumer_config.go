package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/urbansphere/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	// DedupeSize bounds the number of source/table sequences remembered.
	DedupeSize int
}

func FromConfig(dc config.DatasyncCfg) Config {
	size := dc.DedupeSize
	if size <= 0 {
		size = 4096
	}
	return Config{
		Brokers:             dc.Brokers,
		Topic:               dc.Topic,
		GroupID:             dc.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: true,
		DedupeSize:          size,
	}
}
