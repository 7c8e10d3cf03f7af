package storage

import (
	"context"
	"errors"

	"github.com/tahcohcat/meechain/internal/models"
)

var (
	ErrNotFound     = errors.New("storage: player not found")
	ErrCorruptState = errors.New("storage: corrupt player state")
)

// Repository persists one PlayerState record per player.
type Repository interface {
	Load(ctx context.Context, playerID string) (*models.PlayerState, error)
	Save(ctx context.Context, state models.PlayerState) error
	Close() error
}
