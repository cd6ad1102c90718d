package app

import (
	"context"

	"github.com/evanschultz/brainboard/internal/domain"
)

// Repository stores whole-board snapshots.
type Repository interface {
	SaveBoard(context.Context, domain.Board) error
	// LoadBoard returns ErrNotFound when nothing has been saved yet.
	LoadBoard(context.Context) (domain.Board, error)
}

// Notifier receives a copy of the board after every accepted mutation.
type Notifier interface {
	Notify(domain.Board)
}

// Flusher is implemented by notifiers that buffer writes.
type Flusher interface {
	Flush(context.Context) error
}
