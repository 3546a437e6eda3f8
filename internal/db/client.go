// Package db persists projects, people, sprints, standups, reports and
// training runs in SurrealDB.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/raphaelgruber/scrumbot/internal/config"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
)

// WebSocket upgrades fail when TLS negotiates h2.
func init() {
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{NextProtos: []string{"http/1.1"}}
}

// Reconnect behaviour of the underlying WebSocket.
const (
	dialTimeout     = 5 * time.Second
	retryFirstDelay = time.Second
	retryMaxDelay   = 30 * time.Second
	retryMax        = 10
)

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// ConfigFrom picks the SurrealDB settings out of the application config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}
}

// auth returns the sign-in credentials. Database users are scoped to a
// namespace and database; root users are not.
func (cfg Config) auth() surrealdb.Auth {
	a := surrealdb.Auth{Username: cfg.Username, Password: cfg.Password}
	if cfg.AuthLevel == "database" {
		a.Namespace = cfg.Namespace
		a.Database = cfg.Database
	}
	return a
}

// Client is a SurrealDB session over a reconnecting WebSocket.
type Client struct {
	conn    *rews.Connection[*gorillaws.Connection]
	db      *surrealdb.DB
	cfg     Config
	logger  logger.Logger
	metrics *metrics.Collector
}

// NewClient connects, signs in and selects the configured namespace and
// database. log and mc may be nil.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger, mc *metrics.Collector) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{cfg: cfg, logger: logger.New(log.Handler()), metrics: mc}
	c.conn = c.dial()

	c.logger.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := c.conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}
	if err := c.open(ctx); err != nil {
		_ = c.conn.Close(ctx)
		return nil, err
	}
	c.logger.Info("SurrealDB session ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return c, nil
}

// dial builds the reconnecting connection. gorillaws appends /rpc itself.
func (c *Client) dial() *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	wsConfig := &connection.Config{
		BaseURL:     strings.TrimSuffix(c.cfg.URL, "/rpc"),
		Marshaler:   codec,
		Unmarshaler: codec,
		Logger:      c.logger,
	}
	conn := rews.New(
		func(context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(wsConfig), nil
		},
		dialTimeout,
		codec,
		c.logger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = retryFirstDelay
	retryer.MaxDelay = retryMaxDelay
	retryer.Multiplier = 2
	retryer.MaxRetries = retryMax
	conn.Retryer = retryer
	return conn
}

func (c *Client) open(ctx context.Context) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	if _, err := db.SignIn(ctx, c.cfg.auth()); err != nil {
		return fmt.Errorf("sign in as %s (%s): %w", c.cfg.Username, c.cfg.AuthLevel, err)
	}
	if err := db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", c.cfg.Namespace, c.cfg.Database, err)
	}
	c.db = db
	return nil
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// InitSchema applies SchemaSQL. Every statement is idempotent.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := query[any](ctx, c, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.logger.Info("schema ready")
	return nil
}

// Query runs a raw SurrealQL statement.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) (*[]surrealdb.QueryResult[any], error) {
	return query[any](ctx, c, sql, vars)
}

// WipeData deletes every record and keeps the schema. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	stmts := make([]string, len(dataTables))
	for i, table := range dataTables {
		stmts[i] = "DELETE " + table + ";"
	}
	if _, err := query[any](ctx, c, strings.Join(stmts, "\n"), nil); err != nil {
		return fmt.Errorf("wipe data: %w", err)
	}
	c.logger.Warn("wiped all data", "tables", len(dataTables))
	return nil
}

// query runs sql, records its duration and maps known SurrealDB errors to
// sentinels.
func query[T any](ctx context.Context, c *Client, sql string, vars map[string]any) (*[]surrealdb.QueryResult[T], error) {
	start := time.Now()
	res, err := surrealdb.Query[T](ctx, c.db, sql, vars)
	c.metrics.Since(metrics.OpDBQuery, start)
	if err != nil {
		return nil, wrapQueryError(err)
	}
	return res, nil
}

// rows returns the first statement's result, or an empty slice.
func rows[T any](res *[]surrealdb.QueryResult[[]T]) []T {
	if res == nil || len(*res) == 0 || (*res)[0].Result == nil {
		return []T{}
	}
	return (*res)[0].Result
}
