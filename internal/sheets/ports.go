package sheets

import (
	"context"

	"hydra/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryAppender mirrors one intake entry to the backup sheet.
	EntryAppender interface {
		Append(ctx context.Context, e core.Entry) (rowRef string, err error)
	}

	// EntryRemover removes a previously mirrored entry by ID.
	EntryRemover interface {
		Remove(ctx context.Context, id int64) error
	}
)
