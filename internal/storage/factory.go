package storage

import (
	"context"
	"fmt"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/storage/badger"
	"github.com/Geldren1/nato-website-2/internal/storage/postgres"
	"github.com/ternarybob/arbor"
)

// NewPostingStorage creates the posting store selected by config
func NewPostingStorage(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.PostingStorage, error) {
	switch config.Storage.Type {
	case "", "badger":
		db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		return badger.NewPostingStorage(db, logger), nil
	case "postgres":
		db, err := postgres.NewPostgresDB(ctx, logger, &config.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		return postgres.NewPostingStorage(db, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'postgres')", config.Storage.Type)
	}
}
