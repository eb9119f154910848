package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"

	"github.com/ogurasousui/worker-lifecycle/internal/platform/config"
)

// ApplicationName は pg_stat_activity に表示される接続名です。
const ApplicationName = "worker-lifecycle"

// PoolOption は設定ファイル以外の要件で pgxpool.Config を調整します。
type PoolOption func(*pgxpool.Config)

// WithMinMaxConns は MaxConns が n 未満の場合に n へ引き上げます。
// ディスパッチャーの各ワーカーは処理中に 1 接続を占有します。
func WithMinMaxConns(n int) PoolOption {
	return func(c *pgxpool.Config) {
		if n > 0 && c.MaxConns < int32(n) {
			c.MaxConns = int32(n)
		}
	}
}

// WithQueryLogger は pgx のトレースを logrus へ出力します。
func WithQueryLogger(logger logrus.FieldLogger, level tracelog.LogLevel) PoolOption {
	return func(c *pgxpool.Config) {
		c.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(logrusTrace(logger)),
			LogLevel: level,
		}
	}
}

func logrusTrace(logger logrus.FieldLogger) func(context.Context, tracelog.LogLevel, string, map[string]any) {
	return func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		entry := logger.WithFields(logrus.Fields(data)).WithField("event", "PgxTrace")
		switch level {
		case tracelog.LogLevelError:
			entry.Error(msg)
		case tracelog.LogLevelWarn:
			entry.Warn(msg)
		case tracelog.LogLevelTrace:
			entry.Trace(msg)
		default:
			// クエリ単位の Info は量が多いため Debug に落とす
			entry.Debug(msg)
		}
	}
}

// BuildPoolConfig は database 設定とオプションから pgxpool.Config を構築します。
// 接続は常に UTC で、application_name が付与されます。
func BuildPoolConfig(cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	params := poolCfg.ConnConfig.RuntimeParams
	if params == nil {
		params = make(map[string]string, 2)
		poolCfg.ConnConfig.RuntimeParams = params
	}
	params["application_name"] = ApplicationName
	params["timezone"] = "UTC"

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = min(int32(cfg.MaxIdleConns), poolCfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	for _, opt := range opts {
		opt(poolCfg)
	}

	return poolCfg, nil
}

// NewPool は pgxpool.Pool を生成し、疎通を確認してから返します。
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	return pool, nil
}
