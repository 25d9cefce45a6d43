package app

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"taximeter/internal/config"
)

// NewRedisClient connects to the Redis that holds idempotency keys. With New
// Relic enabled every command is traced as a datastore segment.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		host, port, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host, port = cfg.Addr, ""
		}
		client.AddHook(datastoreHook{host: host, port: port, db: cfg.DB})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}

// datastoreHook reports Redis commands to the New Relic transaction that
// nrgin stores in the request context. Commands outside a request (the
// startup PING) are not traced.
type datastoreHook struct {
	host string
	port string
	db   int
}

func (h datastoreHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h datastoreHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			defer h.segment(txn, cmd).End()
		}
		return next(ctx, cmd)
	}
}

// ProcessPipelineHook is a passthrough: the idempotency store issues single
// GET and SET commands only.
func (h datastoreHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h datastoreHook) segment(txn *newrelic.Transaction, cmd redis.Cmder) *newrelic.DatastoreSegment {
	return &newrelic.DatastoreSegment{
		StartTime:    txn.StartSegmentNow(),
		Product:      newrelic.DatastoreRedis,
		Operation:    strings.ToUpper(cmd.Name()),
		Collection:   keyspace(cmd),
		Host:         h.host,
		PortPathOrID: h.port,
		DatabaseName: fmt.Sprint(h.db),
	}
}

// keyspace names the key prefix a command touches, e.g. "idempotency" for
// GET idempotency:POST:/v1/meter/finish:abc.
func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return ""
	}
	key, ok := args[1].(string)
	if !ok {
		return ""
	}
	prefix, _, found := strings.Cut(key, ":")
	if !found {
		return ""
	}
	return prefix
}
