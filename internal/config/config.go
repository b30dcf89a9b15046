// Package config parses the server's CLI/environment surface (spec.md
// §6, "CLI surface / environment"), following the teacher's flag +
// getenv* helper style (internal/config/config.go).
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidURIScheme is returned when the bind address doesn't use the
// http:// scheme, spec.md §6's InvalidUriScheme condition. It is a
// startup-time configuration failure, not one of the per-request
// lwserr.Code categories.
var ErrInvalidURIScheme = errors.New("config: bind address must use the http:// scheme")

const defaultPort = "8080"

// Config is the fully parsed process configuration.
type Config struct {
	DBPath string

	RPCURL      string
	RPCUser     string
	RPCPassword string

	BindHost string
	BindPort string
	Workers  int

	ZMQEndpoint string

	BrokerDriver       string
	BrokerURL          string
	BrokerTopic        string
	BrokerPollInterval time.Duration
	BrokerBatchSize    int
}

// ListenAddr returns the host:port pair net/http.Server.ListenAndServe
// expects.
func (c Config) ListenAddr() string {
	return c.BindHost + ":" + c.BindPort
}

// FromFlags parses os.Args (falling back to environment variables) into
// a Config. It returns ErrInvalidURIScheme if -bind doesn't start with
// http://.
func FromFlags() (Config, error) {
	var cfg Config

	var bind string
	flag.StringVar(&bind, "bind", getenv("LWS_BIND", "http://127.0.0.1:8080"), "HTTP bind address (http://host[:port])")
	flag.IntVar(&cfg.Workers, "workers", getenvInt("LWS_WORKERS", 4), "Worker thread count servicing HTTP requests")

	flag.StringVar(&cfg.DBPath, "db-path", getenv("LWS_DB_PATH", ""), "Pebble KV environment path (required)")

	flag.StringVar(&cfg.RPCURL, "rpc-url", getenv("LWS_RPC_URL", "http://127.0.0.1:18081"), "Upstream daemon RPC URL")
	flag.StringVar(&cfg.RPCUser, "rpc-user", getenv("LWS_RPC_USER", ""), "Upstream daemon RPC username")
	flag.StringVar(&cfg.RPCPassword, "rpc-pass", getenv("LWS_RPC_PASS", ""), "Upstream daemon RPC password")

	flag.StringVar(&cfg.ZMQEndpoint, "zmq-endpoint", getenv("LWS_ZMQ_ENDPOINT", ""), "Optional ZMQ endpoint for daemon abort/reorg signals (tcp://host:port)")

	flag.StringVar(&cfg.BrokerDriver, "broker-driver", getenv("LWS_BROKER_DRIVER", "none"), "Pending-request broker driver (none, kafka, nats, rabbitmq)")
	flag.StringVar(&cfg.BrokerURL, "broker-url", getenv("LWS_BROKER_URL", ""), "Broker URL/DSN")
	flag.StringVar(&cfg.BrokerTopic, "broker-topic", getenv("LWS_BROKER_TOPIC", "lws.account.requests"), "Broker topic/subject/queue name")
	flag.DurationVar(&cfg.BrokerPollInterval, "broker-poll-interval", getenvDuration("LWS_BROKER_POLL_INTERVAL", 500*time.Millisecond), "Pending-request outbox poll interval")
	flag.IntVar(&cfg.BrokerBatchSize, "broker-batch-size", getenvInt("LWS_BROKER_BATCH_SIZE", 1000), "Pending-request outbox batch size")

	flag.Parse()

	host, port, err := parseBind(bind)
	if err != nil {
		return Config{}, err
	}
	cfg.BindHost, cfg.BindPort = host, port

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return cfg, nil
}

// parseBind validates the http:// scheme and splits host[:port],
// recognising IPv6 literals via their closing ']' (spec.md §6) and
// defaulting the port to 8080 when omitted.
func parseBind(bind string) (host, port string, err error) {
	const scheme = "http://"
	if !strings.HasPrefix(bind, scheme) {
		return "", "", ErrInvalidURIScheme
	}
	rest := strings.TrimPrefix(bind, scheme)
	if rest == "" {
		return "", "", fmt.Errorf("config: empty bind address")
	}

	if strings.HasPrefix(rest, "[") {
		closeIdx := strings.IndexByte(rest, ']')
		if closeIdx < 0 {
			return "", "", fmt.Errorf("config: unterminated ipv6 literal in %q", bind)
		}
		host = rest[:closeIdx+1]
		remainder := rest[closeIdx+1:]
		if strings.HasPrefix(remainder, ":") {
			port = remainder[1:]
		}
	} else if idx := strings.LastIndexByte(rest, ':'); idx >= 0 {
		host = rest[:idx]
		port = rest[idx+1:]
	} else {
		host = rest
	}

	if port == "" {
		port = defaultPort
	}
	return host, port, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
