package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/tablescribe-ai/tablescribe-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register("postgres", func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Catalog, error) {
		cfg, err := FromMap(config)
		if err != nil {
			return nil, err
		}
		return NewCatalog(ctx, cfg, logger)
	})
}
