package app

import (
	"context"

	"github.com/graaaaa/vintagepresence/internal/host"
)

// SnapshotUsecase accepts world state pushed by the game mod.
type SnapshotUsecase interface {
	// Put validates and stores a snapshot. Invalid snapshots return an
	// error wrapping host.ErrInvalidSnapshot.
	Put(ctx context.Context, snap host.Snapshot) error

	// Clear forgets the snapshot, as when the player leaves the world.
	Clear(ctx context.Context)
}

// SnapshotService implements SnapshotUsecase on a host.Latest.
type SnapshotService struct {
	Latest *host.Latest
}

// Put validates snap and stores it.
func (s SnapshotService) Put(ctx context.Context, snap host.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	s.Latest.Put(snap)
	return nil
}

// Clear forgets the stored snapshot.
func (s SnapshotService) Clear(ctx context.Context) {
	s.Latest.Clear()
}
