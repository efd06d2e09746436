package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/config"
	"github.com/campusmind/portal/backend/internal/logging"
)

// Open 根据 STORE_DRIVER 创建存储，返回的 close 函数在进程退出时调用。
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, func() error, error) {
	logger = logging.OrNop(logger)
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", "memory":
		logger.Info("conversation store ready", zap.String("driver", "memory"))
		return NewMemoryStore(), noop, nil
	case string(DialectPostgres), string(DialectSQLite):
		store, err := OpenSQL(ctx, Dialect(cfg.Driver), cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("conversation store ready", zap.String("driver", cfg.Driver))
		return store, store.Close, nil
	case "dynamodb":
		client, err := NewDynamoClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, noop, err
		}
		store := NewDynamoStore(client, cfg.DynamoDB.Table)
		if cfg.DynamoDB.CreateTable {
			if err := store.EnsureTable(ctx); err != nil {
				return nil, noop, err
			}
		}
		logger.Info("conversation store ready",
			zap.String("driver", "dynamodb"),
			zap.String("table", cfg.DynamoDB.Table),
		)
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
