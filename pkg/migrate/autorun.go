package migrate

import (
	"context"
	"fmt"

	"github.com/thevault/register/pkg/config"
	"github.com/thevault/register/pkg/db"
	"github.com/thevault/register/pkg/logger"
)

// MaybeRun applies the journal migrations at startup when auto-migrate is on.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.DB.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	logg.Info(ctx, "applying journal migrations")

	if err := Up(ctx, sqlDB, client.Dialect()); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "journal migrations applied")
	return nil
}
