package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Journal keeps a history of finished sessions.
//
//go:generate mockgen -source=journal.go -destination=mocks/mock_journal.go -package=mocks
type Journal interface {
	// Record stores a finished session.
	Record(ctx context.Context, summary *domain.SessionSummary) error

	// Recent returns up to limit sessions, newest first.
	Recent(ctx context.Context, limit int) ([]domain.SessionSummary, error)

	// Close releases the underlying database.
	Close() error
}

// JournalOpener opens the journal kept under a project root.
type JournalOpener interface {
	Open(ctx context.Context, root string) (Journal, error)
}
