package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Options selects and locates a receipt backend.
type Options struct {
	Driver    string
	Path      string
	RedisAddr string
}

// Open opens the configured backend and wraps it as a receipt store.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Receipts, error) {
	kv, err := openKV(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Receipt store opened",
		zap.String("driver", opts.Driver),
		zap.String("path", opts.Path))
	return NewReceipts(kv, logger), nil
}

func openKV(ctx context.Context, opts Options) (KV, error) {
	switch opts.Driver {
	case "file", "":
		return NewFileStore(opts.Path)
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return NewBadgerStore(filepath.Join(opts.Path, "receipts.badger"))
	case "sqlite":
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %v", err)
		}
		return NewSQLiteStore(filepath.Join(opts.Path, "receipts.db"))
	case "redis":
		return NewRedisStore(ctx, opts.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
