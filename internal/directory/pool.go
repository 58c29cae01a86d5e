// Package directory resolves tenant account metadata from the relational
// directory. One small connection pool is kept per environment key; the
// directory store is shared with other products, so the pool is deliberately
// tiny to stay inside the managed database's connection budget.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/jwjoung/cloudtrail-bot/internal/audit"
	"github.com/jwjoung/cloudtrail-bot/internal/settings"
)

const (
	poolMaxOpen = 3
	poolMaxIdle = 2
	poolPrewarm = 2

	defaultPort = 3306
)

// dbConfig is the resolved connection target for one environment.
type dbConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func (c dbConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8&parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// PoolManager owns one pool per environment key for the process lifetime.
// Pools are created lazily on first use and never evicted.
type PoolManager struct {
	mu       sync.Mutex
	pools    map[string]*sql.DB
	resolver *settings.Resolver
	logger   zerolog.Logger
	issuance *audit.Logger

	// driverName and openDB exist as seams for tests; production uses the
	// mysql driver and sql.Open.
	driverName string
	openDB     func(driver, dsn string) (*sql.DB, error)
}

// NewPoolManager creates an empty pool registry.
func NewPoolManager(resolver *settings.Resolver, logger zerolog.Logger) *PoolManager {
	return &PoolManager{
		pools:      make(map[string]*sql.DB),
		resolver:   resolver,
		logger:     logger,
		driverName: "mysql",
		openDB:     sql.Open,
	}
}

// WithOpenFunc overrides how pools are opened. Used by tests and by
// callers embedding an alternative driver.
func (m *PoolManager) WithOpenFunc(driverName string, open func(driver, dsn string) (*sql.DB, error)) *PoolManager {
	m.driverName = driverName
	m.openDB = open
	return m
}

// WithIssuanceLog records configuration tier fallbacks in the issuance
// log, so a reviewer can see which database a deployment actually used.
func (m *PoolManager) WithIssuanceLog(al *audit.Logger) *PoolManager {
	m.issuance = al
	return m
}

func (m *PoolManager) record(event audit.EventType, detail map[string]string) {
	if m.issuance == nil {
		return
	}
	if err := m.issuance.Log(event, "", "", detail); err != nil {
		m.logger.Warn().Err(err).Msg("issuance log write failed")
	}
}

// Get returns the pool for the environment key, creating it on first use.
// Repeated calls with the same key return the identical pool.
func (m *PoolManager) Get(ctx context.Context, envType string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.pools[envType]; ok {
		return db, nil
	}

	cfg, err := m.resolveConfig(ctx, envType)
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("env", envType).
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Str("user", cfg.User).
		Msg("creating directory connection pool")

	db, err := m.openDB(m.driverName, cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening directory pool: %w", err)
	}

	db.SetMaxOpenConns(poolMaxOpen)
	db.SetMaxIdleConns(poolMaxIdle)

	if err := prewarm(ctx, db, poolPrewarm); err != nil {
		db.Close()
		return nil, fmt.Errorf("warming directory pool: %w", err)
	}

	m.pools[envType] = db
	return db, nil
}

// Close shuts down every pool. Only used on process teardown.
func (m *PoolManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for key, db := range m.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.pools, key)
	}
	return firstErr
}

// prewarm establishes n live connections so the first lookups do not pay
// the handshake cost.
func prewarm(ctx context.Context, db *sql.DB, n int) error {
	conns := make([]*sql.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return err
		}
		conns = append(conns, conn)
	}
	for _, c := range conns {
		c.Close()
	}
	return nil
}

// resolveConfig resolves the database target in the fixed tier order:
// explicit environment overrides, the managed-database parameter path, then
// the legacy parameter path. Reordering breaks deployments still running on
// legacy values.
func (m *PoolManager) resolveConfig(ctx context.Context, envType string) (dbConfig, error) {
	cfg := dbConfig{
		Host:     m.resolver.Env("DB_HOST"),
		User:     m.resolver.Env("DB_USER"),
		Password: m.resolver.Env("DB_PASSWORD"),
		Name:     m.resolver.Env("DB_NAME"),
		Port:     defaultPort,
	}
	if p := m.resolver.Env("DB_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return dbConfig{}, fmt.Errorf("invalid DB_PORT %q: %w", p, err)
		}
		cfg.Port = port
	}
	if cfg.Host != "" {
		return cfg, nil
	}

	// Managed-database tier: the ts product prefix carries host/id/pw only.
	const managedPrefix = "/fitcloud/prd/db/ts"
	host, ok, err := m.resolver.LookupParameter(ctx, managedPrefix+"/host")
	if err != nil {
		return dbConfig{}, err
	}
	if ok {
		m.logger.Info().Str("prefix", managedPrefix).Msg("loading db settings from managed path")
		m.record(audit.EventConfigFallback, map[string]string{"tier": "managed", "prefix": managedPrefix, "env": envType})
		user, _, err := m.resolver.LookupParameter(ctx, managedPrefix+"/id")
		if err != nil {
			return dbConfig{}, err
		}
		password, _, err := m.resolver.LookupParameter(ctx, managedPrefix+"/pw")
		if err != nil {
			return dbConfig{}, err
		}
		return dbConfig{Host: host, User: user, Password: password, Name: "edp", Port: defaultPort}, nil
	}

	// Legacy tier: strict, a miss here is a real misconfiguration. Each
	// value still honors its environment override, so a deployment can pin
	// a single field (say the user) while the rest comes from parameters.
	legacyPrefix := fmt.Sprintf("/fitcloud/%s/db", envType)
	m.logger.Info().Str("prefix", legacyPrefix).Msg("loading db settings from legacy path")
	m.record(audit.EventConfigFallback, map[string]string{"tier": "legacy", "prefix": legacyPrefix, "env": envType})

	if cfg.Host, err = m.resolver.LoadParameter(ctx, legacyPrefix+"/host"); err != nil {
		return dbConfig{}, err
	}
	if cfg.User, err = m.resolver.EnvOrParameter(ctx, "DB_USER", legacyPrefix+"/user/admin/id"); err != nil {
		return dbConfig{}, err
	}
	if cfg.Password, err = m.resolver.EnvOrParameter(ctx, "DB_PASSWORD", legacyPrefix+"/user/admin/pw"); err != nil {
		return dbConfig{}, err
	}
	if cfg.Name, err = m.resolver.EnvOrParameter(ctx, "DB_NAME", legacyPrefix+"/db"); err != nil {
		return dbConfig{}, err
	}
	return cfg, nil
}
