package cmd

import (
	"context"

	"github.com/echostash/echostash-automation/internal/config"
	errwrap "github.com/echostash/echostash-automation/internal/errors"
	"github.com/echostash/echostash-automation/internal/store"
)

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.OpenAndMigrate(ctx, cfg.Store)
	if err != nil {
		return nil, errwrap.WrapDatabaseError(ctx, err, "failed to open resource ledger")
	}
	return db, nil
}
