package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type LogCfg struct {
	Level   string
	Console bool
	SampleN int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type DatasyncCfg struct {
	Enabled    bool
	Brokers    []string
	Topic      string
	GroupID    string
	DedupeSize int
	// Namespace of the Redis table store the consumer writes to.
	Namespace  string
}

type Config struct {
	Addr         string
	Log          LogCfg
	DataDir      string
	LayersFile   string
	RedisAddr    string
	HeatH3Res    int
	TopNDefault  int
	CORSOrigins  []string
	FetchTimeout time.Duration
	Metrics      MetricsCfg
	Datasync     DatasyncCfg
}

func FromEnv() Config {
	res := getint("HEAT_H3_RES", 4)
	if res < 0 || res > 15 {
		res = 4
	}
	topN := getint("TOPN_DEFAULT", 10)
	if topN <= 0 {
		topN = 10
	}

	return Config{
		Addr: getenv("ADDR", ":8090"),
		Log: LogCfg{
			Level:   getenv("LOG_LEVEL", "info"),
			Console: getbool("LOG_CONSOLE", false),
			SampleN: getint("LOG_SAMPLE_N", 0),
		},
		DataDir:      getenv("DATA_DIR", "./data"),
		LayersFile:   getenv("LAYERS_FILE", ""),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		HeatH3Res:    res,
		TopNDefault:  topN,
		CORSOrigins:  getlist("CORS_ORIGINS", []string{"*"}),
		FetchTimeout: getduration("FETCH_TIMEOUT", 30*time.Second),
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
		Datasync: DatasyncCfg{
			Enabled:    getbool("DATASYNC_ENABLED", false),
			Brokers:    getlist("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:      getenv("KAFKA_TOPIC", "urbansphere-datasets"),
			GroupID:    getenv("KAFKA_GROUP_ID", "urbansphere-datasync"),
			DedupeSize: getint("DATASYNC_DEDUPE_SIZE", 4096),
			Namespace:  getenv("DATASET_NAMESPACE", ""),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// comma-separated list, blanks dropped
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
