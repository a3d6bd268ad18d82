package actions

import (
	"context"

	"github.com/carson-networks/ingest-server/internal/storage"
)

type IAction interface {
	Perform(ctx context.Context, store *storage.Storage) error
}
