package cartstore

import (
	"context"

	"github.com/shopmesh/shopmesh-client/pkg/config"
	"github.com/shopmesh/shopmesh-client/pkg/db"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
)

// Open boots the persistent store, degrading to the in-memory backend when
// the database cannot be opened and the fallback flag allows it. An
// unusable storage medium must never take the cart down; it only costs
// persistence. The returned client is nil in the degraded case.
func Open(ctx context.Context, cfg *config.Config, notifier *Notifier, logg *logger.Logger) (Store, *db.Client, error) {
	client, err := db.New(ctx, cfg.DB, logg)
	if err == nil {
		return NewGormStore(client, notifier), client, nil
	}

	if !cfg.FeatureFlags.MemoryFallback {
		return nil, nil, err
	}
	if logg != nil {
		logg.Warn(ctx, "cart storage unavailable, falling back to in-memory store: "+err.Error())
	}
	return NewMemoryStore(notifier), nil, nil
}
